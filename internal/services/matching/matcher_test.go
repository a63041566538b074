package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactAmountMatcher(t *testing.T) {
	cfg := DefaultConfig()
	m := NewExactAmountMatcher(cfg)

	t.Run("perfect pair scores 1.0", func(t *testing.T) {
		tx := newTx("1000.00", date(2025, 3, 10), "")
		r := newReceivable("INV-1", "Acme", "1000.00", date(2025, 3, 10))

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.Equal(t, 1.0, h.Confidence)
		assert.Equal(t, KindExact, h.Kind)
		assert.Equal(t, r.ID, h.ReceivableID)
		assert.Equal(t, tx.ID, h.TransactionID)
	})

	t.Run("decays linearly with date distance", func(t *testing.T) {
		tx := newTx("1000.00", date(2025, 3, 15), "")
		r := newReceivable("INV-1", "Acme", "1000.00", date(2025, 3, 10))

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.InDelta(t, 0.85, h.Confidence, 1e-9)
	})

	t.Run("window edge reaches the floor", func(t *testing.T) {
		tx := newTx("1000.00", date(2025, 3, 20), "")
		r := newReceivable("INV-1", "Acme", "1000.00", date(2025, 3, 10))

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.InDelta(t, cfg.ExactFloor, h.Confidence, 1e-9)
	})

	t.Run("outside window yields nothing", func(t *testing.T) {
		tx := newTx("1000.00", date(2025, 3, 21), "")
		r := newReceivable("INV-1", "Acme", "1000.00", date(2025, 3, 10))

		assert.Nil(t, m.Evaluate(tx, &r))
	})

	t.Run("inexact amount within tolerance stays below 1.0", func(t *testing.T) {
		tx := newTx("999.99", date(2025, 3, 10), "")
		r := newReceivable("INV-1", "Acme", "1000.00", date(2025, 3, 10))

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.Less(t, h.Confidence, 1.0)
		assert.Greater(t, h.Confidence, cfg.ExactFloor)
	})

	t.Run("amount beyond tolerance yields nothing", func(t *testing.T) {
		tx := newTx("999.00", date(2025, 3, 10), "")
		r := newReceivable("INV-1", "Acme", "1000.00", date(2025, 3, 10))

		assert.Nil(t, m.Evaluate(tx, &r))
	})

	t.Run("compares against the remaining amount", func(t *testing.T) {
		tx := newTx("600.00", date(2025, 3, 10), "")
		r := newReceivable("INV-1", "Acme", "1000.00", date(2025, 3, 10))
		r.AllocatedAmount = dec("400.00")

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.Equal(t, 1.0, h.Confidence)
	})
}

func TestIBANMatcher(t *testing.T) {
	m := NewIBANMatcher(DefaultConfig())

	r := newReceivable("INV-7", "Bianchi", "250.00", date(2025, 5, 1))
	r.CounterpartyID = "IT60X0542811101000000123456"

	t.Run("identifier and amount", func(t *testing.T) {
		tx := newTx("250.00", date(2025, 6, 30), "bonifico")
		tx.CounterpartyID = strPtr("it60 x054 2811 1010 0000 0123 456")

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.Equal(t, 0.9, h.Confidence)
	})

	t.Run("identifier only", func(t *testing.T) {
		tx := newTx("100.00", date(2025, 6, 30), "bonifico")
		tx.CounterpartyID = strPtr("IT60X0542811101000000123456")

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.Equal(t, 0.6, h.Confidence)
	})

	t.Run("different identifier", func(t *testing.T) {
		tx := newTx("250.00", date(2025, 5, 1), "")
		tx.CounterpartyID = strPtr("DE89370400440532013000")

		assert.Nil(t, m.Evaluate(tx, &r))
	})

	t.Run("missing identifier", func(t *testing.T) {
		tx := newTx("250.00", date(2025, 5, 1), "")
		assert.Nil(t, m.Evaluate(tx, &r))

		tx.CounterpartyID = strPtr("   ")
		blank := newReceivable("INV-8", "Verdi", "250.00", date(2025, 5, 1))
		assert.Nil(t, m.Evaluate(tx, &blank))
	})
}

func TestFuzzyDescriptionMatcher(t *testing.T) {
	m := NewFuzzyDescriptionMatcher(DefaultConfig())

	t.Run("reference quoted in description", func(t *testing.T) {
		tx := newTx("400.00", date(2025, 4, 20), "PAGAMENTO FT 12/2025 ROSSI")
		r := newReceivable("12/2025", "Rossi", "1220.00", date(2025, 1, 31))

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.GreaterOrEqual(t, h.Confidence, 0.80)
		assert.LessOrEqual(t, h.Confidence, 1.0)
		assert.Equal(t, KindFuzzyDescription, h.Kind)
	})

	t.Run("unrelated description", func(t *testing.T) {
		tx := newTx("400.00", date(2025, 4, 20), "CANONE NOLEGGIO STAMPANTE")
		r := newReceivable("12/2025", "Rossi", "1220.00", date(2025, 1, 31))

		assert.Nil(t, m.Evaluate(tx, &r))
	})

	t.Run("configurable floor", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FuzzyFloor = 0.99
		strict := NewFuzzyDescriptionMatcher(cfg)

		tx := newTx("400.00", date(2025, 4, 20), "PAGAMENTO FT 12/2025 ROSSO")
		r := newReceivable("12/2025", "Rossi", "1220.00", date(2025, 1, 31))

		assert.Nil(t, strict.Evaluate(tx, &r))
		assert.NotNil(t, m.Evaluate(tx, &r))
	})
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Pagamento fattura 12/2025 - ROSSI S.r.l.", "12/2025 Rossi"))
	assert.Equal(t, 0.0, Similarity("", "12/2025 Rossi"))
	assert.Equal(t, 0.0, Similarity("anything", ""))

	partial := Similarity("payment 12/2025 rosso", "12/2025 Rossi")
	assert.InDelta(t, (1+1+0.8)/3.0, partial, 1e-4)
}

func TestSimilarityUsesLongerTokenLength(t *testing.T) {
	// one deletion in five runes, three in ten
	assert.InDelta(t, 0.80, Similarity("ross", "rossi"), 1e-9)
	assert.InDelta(t, 0.70, Similarity("lombard", "lombardini"), 1e-9)
	assert.InDelta(t, 0.70, Similarity("lombardini", "lombard"), 1e-9)

	m := NewFuzzyDescriptionMatcher(DefaultConfig())
	r := newReceivable("", "Lombardini", "300.00", date(2025, 5, 2))

	assert.Nil(t, m.Evaluate(newTx("300.00", date(2025, 5, 2), "BONIFICO LOMBARD"), &r))

	h := m.Evaluate(newTx("300.00", date(2025, 5, 2), "BONIFICO LOMBARDINO"), &r)
	require.NotNil(t, h)
	assert.InDelta(t, 0.90, h.Confidence, 1e-9)
}

func TestDateWindowMatcher(t *testing.T) {
	cfg := DefaultConfig()
	m := NewDateWindowMatcher(cfg)

	t.Run("close date and rough amount", func(t *testing.T) {
		tx := newTx("980.00", date(2025, 3, 12), "")
		r := newReceivable("INV-2", "Acme", "1000.00", date(2025, 3, 10))

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.InDelta(t, 1-2.0/11.0, h.Confidence, 1e-9)
	})

	t.Run("closer is better", func(t *testing.T) {
		r := newReceivable("INV-2", "Acme", "1000.00", date(2025, 3, 10))
		near := m.Evaluate(newTx("1000.00", date(2025, 3, 11), ""), &r)
		far := m.Evaluate(newTx("1000.00", date(2025, 3, 18), ""), &r)

		require.NotNil(t, near)
		require.NotNil(t, far)
		assert.Greater(t, near.Confidence, far.Confidence)
	})

	t.Run("amount outside loose tolerance", func(t *testing.T) {
		tx := newTx("50.00", date(2025, 3, 10), "")
		r := newReceivable("INV-2", "Acme", "1000.00", date(2025, 3, 10))

		assert.Nil(t, m.Evaluate(tx, &r))
	})

	t.Run("outside window", func(t *testing.T) {
		tx := newTx("1000.00", date(2025, 4, 10), "")
		r := newReceivable("INV-2", "Acme", "1000.00", date(2025, 3, 10))

		assert.Nil(t, m.Evaluate(tx, &r))
	})
}

func TestCompositeMatcher(t *testing.T) {
	t.Run("exact plus date window clamps to 1.0", func(t *testing.T) {
		m := NewCompositeMatcher(DefaultConfig())
		tx := newTx("1000.00", date(2025, 3, 15), "")
		r := newReceivable("INV-1", "Acme", "1000.00", date(2025, 3, 10))

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.Equal(t, KindComposite, h.Kind)
		assert.Equal(t, 1.0, h.Confidence)
		assert.Contains(t, h.Rationale, string(KindExact))
		assert.Contains(t, h.Rationale, string(KindDateWindow))
	})

	t.Run("weights scale contributions", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Weights = map[Kind]float64{KindIBAN: 0.5}
		m := NewCompositeMatcher(cfg)

		tx := newTx("10.00", date(2025, 1, 1), "")
		tx.CounterpartyID = strPtr("IT60X0542811101000000123456")
		r := newReceivable("INV-3", "Acme", "900.00", date(2025, 6, 1))
		r.CounterpartyID = "IT60X0542811101000000123456"

		h := m.Evaluate(tx, &r)
		require.NotNil(t, h)
		assert.Equal(t, 0.3, h.Confidence)
	})

	t.Run("nothing fires", func(t *testing.T) {
		m := NewCompositeMatcher(DefaultConfig())
		tx := newTx("50.00", date(2025, 1, 1), "unrelated")
		r := newReceivable("INV-4", "Acme", "1000.00", date(2025, 6, 1))

		assert.Nil(t, m.Evaluate(tx, &r))
	})
}

func TestNewMatcher(t *testing.T) {
	cfg := DefaultConfig()
	for _, kind := range []Kind{KindExact, KindIBAN, KindFuzzyDescription, KindDateWindow, KindComposite} {
		m, err := NewMatcher(kind, cfg)
		require.NoError(t, err)
		assert.Equal(t, kind, m.Kind())
	}

	_, err := NewMatcher("SOUNDEX", cfg)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.AmountTolerance = dec("-0.01")
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FuzzyFloor = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Weights = map[Kind]float64{KindExact: -1}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Weights = map[Kind]float64{KindComposite: 1}
	assert.Error(t, cfg.Validate())
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 5, daysBetween(date(2025, 3, 15), date(2025, 3, 10)))
	assert.Equal(t, 5, daysBetween(date(2025, 3, 10), date(2025, 3, 15)))
	assert.Equal(t, 0, daysBetween(date(2025, 3, 10).Add(23*time.Hour), date(2025, 3, 10)))
	assert.Equal(t, 1, daysBetween(date(2025, 3, 1), date(2025, 2, 28)))
}

var _ Matcher = (*ExactAmountMatcher)(nil)
var _ Matcher = (*IBANMatcher)(nil)
var _ Matcher = (*FuzzyDescriptionMatcher)(nil)
var _ Matcher = (*DateWindowMatcher)(nil)
var _ Matcher = (*CompositeMatcher)(nil)
