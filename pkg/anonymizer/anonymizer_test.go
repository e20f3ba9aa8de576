package anonymizer

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
)

var customerPseudonym = regexp.MustCompile(`^ZÁKAZNÍK_[0-9A-F]{6}$`)

func TestPseudonym_CustomerScenario(t *testing.T) {
	a := New(true)

	first := a.Name(Customer, "Firma ABC s.r.o.", int64(123))
	second := a.Name(Customer, "Firma ABC s.r.o.", int64(123))

	require.IsType(t, "", first)
	assert.Regexp(t, customerPseudonym, first)
	assert.Equal(t, first, second)
}

func TestPseudonym_RecomputedAfterClearCache(t *testing.T) {
	a := New(true)
	before := a.Pseudonym(Worker, int64(42))

	a.ClearCache()
	assert.Empty(t, a.Mapping()["workers"])

	assert.Equal(t, before, a.Pseudonym(Worker, int64(42)))
}

func TestPseudonym_DomainsAreIndependent(t *testing.T) {
	a := New(true)

	c := a.Pseudonym(Customer, int64(7))
	w := a.Pseudonym(Worker, int64(7))

	assert.Regexp(t, `^ZÁKAZNÍK_`, c)
	assert.Regexp(t, `^ZAMĚSTNANEC_`, w)
	assert.NotEqual(t, c[len(c)-6:], w[len(w)-6:])
}

func TestPseudonym_DistinctIds(t *testing.T) {
	a := New(true)
	seen := make(map[string]int)
	for id := 1; id <= 200; id++ {
		p := a.Pseudonym(Customer, int64(id))
		if prev, ok := seen[p]; ok {
			t.Fatalf("ids %d and %d share pseudonym %s", prev, id, p)
		}
		seen[p] = id
	}
}

func TestPseudonym_IdKeyIgnoresNumericType(t *testing.T) {
	a := New(true)
	assert.Equal(t, a.Pseudonym(Customer, int64(5)), a.Pseudonym(Customer, float64(5)))
	assert.Equal(t, a.Pseudonym(Customer, nil), a.Pseudonym(Customer, 0))
}

func TestPseudonym_Concurrent(t *testing.T) {
	a := New(true)
	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Pseudonym(Worker, int64(9))
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.Len(t, a.Mapping()["workers"], 1)
}

func TestName_EmptyIsUnchanged(t *testing.T) {
	a := New(true)
	assert.Equal(t, "", a.Name(Customer, "", int64(1)))
	assert.Nil(t, a.Name(Customer, nil, int64(1)))
}

func TestEmail(t *testing.T) {
	a := New(true)

	out := a.Email("jan.novak@firma.cz")
	assert.Equal(t, MaskedEmail, out)
	assert.NotContains(t, out, "jan")
	assert.NotContains(t, out, "firma")

	assert.Equal(t, MaskedEmailNoAt, a.Email("neplatny"))
	assert.Nil(t, a.Email(nil))
}

func TestPhone_PreservesLayout(t *testing.T) {
	a := New(true)
	tests := []struct {
		in   string
		want string
	}{
		{"+420 777 123 456", "+XXX XXX XXX XXX"},
		{"(02) 1234-5678", "(XX) XXXX-XXXX"},
		{"777123456", "XXXXXXXXX"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			out := a.Phone(tt.in).(string)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, len(tt.in), len(out))
		})
	}
}

func TestNote_ScrubsAllCategories(t *testing.T) {
	a := New(true)

	out := a.Note("Kontakt: jan@firma.cz, tel. 123456789, IČO 12345678").(string)

	assert.Equal(t, "Kontakt: [email], tel. [telefon], IČO [IČO]", out)
	assert.NotContains(t, out, "jan@firma.cz")
	assert.NotContains(t, out, "123456789")
	assert.NotContains(t, out, "12345678")
}

func TestScrubText_Idempotent(t *testing.T) {
	inputs := []string{
		"Kontakt: jan@firma.cz, tel. 123456789, IČO 12345678",
		"volat +420 777 123 456 nebo petr.dvorak@example.com",
		"dodat do 14 dnů, 2 ks",
		"",
	}
	for _, in := range inputs {
		once := ScrubText(in)
		assert.Equal(t, once, ScrubText(once), "input %q", in)
	}
}

func TestDisabled_IsIdentity(t *testing.T) {
	a := New(false)
	rows := []datasource.Row{datasource.RowOf("customer_id", int64(1), "customer_name", "Firma ABC", "note", "jan@firma.cz")}

	assert.Equal(t, rows, a.Orders(rows))
	assert.Equal(t, "jan@firma.cz", a.Email("jan@firma.cz"))
	assert.Equal(t, "777 123 456", a.Phone("777 123 456"))
	assert.Equal(t, "Firma ABC", a.Name(Customer, "Firma ABC", int64(1)))
}

func TestOrders(t *testing.T) {
	a := New(true)
	rows := []datasource.Row{
		datasource.RowOf("id", int64(1), "customer_id", int64(10), "customer_name", "Strojírny Brno a.s.", "note", "volat 777123456"),
		datasource.RowOf("id", int64(2), "customer_id", int64(10), "customer_name", "Strojírny Brno a.s.", "note", nil),
	}

	out := a.Orders(rows)

	require.Len(t, out, 2)
	assert.Regexp(t, customerPseudonym, out[0].Value("customer_name"))
	assert.Equal(t, out[0].Value("customer_name"), out[1].Value("customer_name"))
	assert.Equal(t, "volat [telefon]", out[0].Value("note"))
	assert.Nil(t, out[1].Value("note"))
	assert.Equal(t, "Strojírny Brno a.s.", rows[0].Value("customer_name"))
}

func TestOrderDetail(t *testing.T) {
	a := New(true)
	detail := &models.OrderDetail{
		Order: datasource.RowOf(
			"id", int64(5),
			"customer_id", int64(3),
			"customer_name", "Firma ABC",
			"customer_full_name", "Firma ABC s.r.o.",
			"note", "jan@firma.cz",
			"note2", "IČO 12345678",
			"ico", "12345678",
			"dic", "CZ12345678",
		),
		Operations: []datasource.Row{datasource.RowOf("id", int64(1), "comment", "tel 602 111 222")},
		Materials:  []datasource.Row{datasource.RowOf("id", int64(1))},
	}

	out := a.OrderDetail(detail)

	assert.Equal(t, out.Order.Value("customer_name"), out.Order.Value("customer_full_name"))
	assert.Equal(t, "[email]", out.Order.Value("note"))
	assert.Equal(t, "IČO [IČO]", out.Order.Value("note2"))
	assert.Equal(t, MaskedICO, out.Order.Value("ico"))
	assert.Equal(t, MaskedDIC, out.Order.Value("dic"))
	assert.Equal(t, "tel [telefon]", out.Operations[0].Value("comment"))
	assert.Equal(t, detail.Order.Keys(), out.Order.Keys())
	assert.Equal(t, "12345678", detail.Order.Value("ico"))
}

func TestWorkerDetail_KeepsKeySet(t *testing.T) {
	a := New(true)
	detail := &models.WorkerDetail{
		Worker: datasource.RowOf(
			"id", int64(8),
			"name", "Novák Jan",
			"firstname", "Jan",
			"lastname", "Novák",
			"email", "jan.novak@firma.cz",
			"telefon", "777 123 456",
			"comment", "soukromý mobil 777123456",
			"birthdate", "1980-05-01",
			"card", "00123",
			"card_dmr", "99",
		),
	}

	out := a.WorkerDetail(detail)
	w := out.Worker

	assert.Equal(t, detail.Worker.Keys(), w.Keys())
	assert.Regexp(t, `^ZAMĚSTNANEC_[0-9A-F]{6}$`, w.Value("name"))
	assert.Equal(t, MaskedName, w.Value("firstname"))
	assert.Equal(t, MaskedName, w.Value("lastname"))
	assert.Equal(t, MaskedEmail, w.Value("email"))
	assert.Equal(t, "XXX XXX XXX", w.Value("telefon"))
	assert.Equal(t, "soukromý mobil [telefon]", w.Value("comment"))
	assert.Nil(t, w.Value("birthdate"))
	assert.True(t, w.Has("birthdate"))
	assert.Equal(t, MaskedCard, w.Value("card"))
	assert.Equal(t, MaskedCard, w.Value("card_dmr"))
}

func TestWorkers_ListLeavesCardsAlone(t *testing.T) {
	a := New(true)
	out := a.Workers([]datasource.Row{datasource.RowOf("id", int64(1), "name", "Dvořák Petr", "card", "123")})

	assert.Equal(t, "123", out[0].Value("card"))
}

func TestMapping(t *testing.T) {
	a := New(true)
	p := a.Pseudonym(Customer, int64(123))

	m := a.Mapping()
	assert.Equal(t, "123", m["customers"][p])
	assert.Empty(t, m["workers"])
}
