// Package anonymizer replaces personal data in query results with stable
// pseudonyms and masks.
//
// Pseudonyms are derived from the record id, not from the name, so the same
// customer or worker always gets the same pseudonym within one process. The
// mapping is kept in memory only; nothing is persisted.
package anonymizer

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
)

// Domain is an identity namespace. Equal ids in different domains map to
// unrelated pseudonyms.
type Domain int

const (
	Customer Domain = iota
	Worker
)

func (d Domain) tag() string {
	if d == Worker {
		return "worker"
	}
	return "customer"
}

// Label is the visible pseudonym prefix.
func (d Domain) Label() string {
	if d == Worker {
		return "ZAMĚSTNANEC"
	}
	return "ZÁKAZNÍK"
}

// Masks for values that have no meaningful pseudonymized form.
const (
	MaskedEmail        = "email_***@***"
	MaskedEmailNoAt    = "email_***"
	MaskedName         = "XXX"
	MaskedICO          = "********"
	MaskedDIC          = "**********"
	MaskedCard         = "****"
	EmailTag           = "[email]"
	PhoneTag           = "[telefon]"
	RegistrationNumTag = "[IČO]"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)
	icoPattern   = regexp.MustCompile(`\b\d{8}\b`)
	digitPattern = regexp.MustCompile(`\d`)
)

type identityCache struct {
	customers sync.Map
	workers   sync.Map
}

func (c *identityCache) domain(d Domain) *sync.Map {
	if d == Worker {
		return &c.workers
	}
	return &c.customers
}

// Anonymizer is safe for concurrent use. A disabled Anonymizer returns
// every input unchanged.
type Anonymizer struct {
	enabled bool
	cache   atomic.Pointer[identityCache]
}

func New(enabled bool) *Anonymizer {
	a := &Anonymizer{enabled: enabled}
	a.cache.Store(&identityCache{})
	return a
}

func (a *Anonymizer) Enabled() bool { return a.enabled }

// Pseudonym returns "<LABEL>_<6 hex>" for the id. A nil id is treated as 0.
func (a *Anonymizer) Pseudonym(d Domain, id any) string {
	key := idKey(id)
	cache := a.cache.Load().domain(d)
	if v, ok := cache.Load(key); ok {
		return v.(string)
	}
	v, _ := cache.LoadOrStore(key, pseudonym(d, key))
	return v.(string)
}

func pseudonym(d Domain, key string) string {
	sum := blake3.Sum256([]byte(d.tag() + "_" + key))
	return d.Label() + "_" + strings.ToUpper(hex.EncodeToString(sum[:3]))
}

func idKey(id any) string {
	switch v := id.(type) {
	case nil:
		return "0"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprint(int64(v))
		}
	}
	return fmt.Sprint(id)
}

// Name replaces a non-empty name with the pseudonym of id.
func (a *Anonymizer) Name(d Domain, name any, id any) any {
	if !a.enabled || isEmpty(name) {
		return name
	}
	return a.Pseudonym(d, id)
}

// Email discards the whole address.
func (a *Anonymizer) Email(v any) any {
	if !a.enabled || isEmpty(v) {
		return v
	}
	s, ok := v.(string)
	if ok && !strings.Contains(s, "@") {
		return MaskedEmailNoAt
	}
	return MaskedEmail
}

// Phone replaces every digit with X and keeps the separators.
func (a *Anonymizer) Phone(v any) any {
	s, ok := v.(string)
	if !a.enabled || !ok || s == "" {
		return v
	}
	return digitPattern.ReplaceAllString(s, "X")
}

// Note scrubs e-mail addresses, phone numbers and 8 digit registration
// numbers from free text, replacing each match with its tag.
func (a *Anonymizer) Note(v any) any {
	s, ok := v.(string)
	if !a.enabled || !ok || s == "" {
		return v
	}
	return ScrubText(s)
}

// ScrubText applies the free text patterns in order: e-mail, phone, IČO.
func ScrubText(s string) string {
	s = emailPattern.ReplaceAllString(s, EmailTag)
	s = phonePattern.ReplaceAllString(s, PhoneTag)
	return icoPattern.ReplaceAllString(s, RegistrationNumTag)
}

func isEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return s == ""
	}
	return false
}

// Orders anonymizes order list and search rows.
func (a *Anonymizer) Orders(rows []datasource.Row) []datasource.Row {
	if !a.enabled {
		return rows
	}
	out := make([]datasource.Row, len(rows))
	for i, row := range rows {
		customerID := row.Value("customer_id")
		out[i] = row.Transform(func(key string, v any) any {
			switch key {
			case "customer_name":
				return a.Name(Customer, v, customerID)
			case "note":
				return a.Note(v)
			}
			return v
		})
	}
	return out
}

// OrderDetail anonymizes the order header and the operation comments.
// Materials carry no personal data.
func (a *Anonymizer) OrderDetail(d *models.OrderDetail) *models.OrderDetail {
	if !a.enabled || d == nil {
		return d
	}
	customerID := d.Order.Value("customer_id")
	order := d.Order.Transform(func(key string, v any) any {
		switch key {
		case "customer_name", "customer_full_name":
			return a.Name(Customer, v, customerID)
		case "note", "note2":
			return a.Note(v)
		case "ico":
			return MaskedICO
		case "dic":
			return MaskedDIC
		}
		return v
	})

	ops := make([]datasource.Row, len(d.Operations))
	for i, op := range d.Operations {
		ops[i] = op.Transform(func(key string, v any) any {
			if key == "comment" {
				return a.Note(v)
			}
			return v
		})
	}

	return &models.OrderDetail{Order: order, Operations: ops, Materials: d.Materials}
}

// Workers anonymizes worker list rows.
func (a *Anonymizer) Workers(rows []datasource.Row) []datasource.Row {
	if !a.enabled {
		return rows
	}
	out := make([]datasource.Row, len(rows))
	for i, row := range rows {
		out[i] = a.worker(row, false)
	}
	return out
}

// WorkerDetail additionally drops the birth date and masks access cards.
func (a *Anonymizer) WorkerDetail(d *models.WorkerDetail) *models.WorkerDetail {
	if !a.enabled || d == nil {
		return d
	}
	return &models.WorkerDetail{Worker: a.worker(d.Worker, true), Stats: d.Stats}
}

func (a *Anonymizer) worker(row datasource.Row, detail bool) datasource.Row {
	workerID := row.Value("id")
	return row.Transform(func(key string, v any) any {
		switch key {
		case "name":
			return a.Name(Worker, v, workerID)
		case "firstname", "lastname":
			return MaskedName
		case "email":
			return a.Email(v)
		case "telefon":
			return a.Phone(v)
		}
		if !detail {
			return v
		}
		switch key {
		case "comment":
			return a.Note(v)
		case "birthdate":
			return nil
		case "card", "card_dmr":
			return MaskedCard
		}
		return v
	})
}

// Mapping returns pseudonym to source id per domain, for debugging.
func (a *Anonymizer) Mapping() map[string]map[string]string {
	cache := a.cache.Load()
	out := map[string]map[string]string{
		"customers": {},
		"workers":   {},
	}
	collect := func(m *sync.Map, dst map[string]string) {
		m.Range(func(k, v any) bool {
			dst[v.(string)] = k.(string)
			return true
		})
	}
	collect(&cache.customers, out["customers"])
	collect(&cache.workers, out["workers"])
	return out
}

// ClearCache drops both identity caches at once.
func (a *Anonymizer) ClearCache() {
	a.cache.Store(&identityCache{})
}
