package definition

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pitabwire/vesselwizard/internal/rules"
	"github.com/pitabwire/vesselwizard/model"
)

// Transaction is a compiled transaction definition: step descriptors and
// rules built once at load time and shared read-only by every session.
type Transaction struct {
	Domain       string
	Type         string
	Title        string
	Description  string
	RuleSet      string
	Capabilities []string
	Steps        []model.StepDescriptor

	rules [][]rules.Rule
	when  []*rules.Condition
}

// Compile builds the steps and rules of def.
func Compile(domain string, def model.TransactionDefinition) (*Transaction, error) {
	tx := &Transaction{
		Domain:       domain,
		Type:         def.Type,
		Title:        def.Title,
		Description:  def.Description,
		RuleSet:      def.RuleSet,
		Capabilities: def.Capabilities,
		Steps:        make([]model.StepDescriptor, len(def.Steps)),
		rules:        make([][]rules.Rule, len(def.Steps)),
		when:         make([]*rules.Condition, len(def.Steps)),
	}
	for i, sd := range def.Steps {
		step, err := model.NewStepDescriptor(sd)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", def.Type, err)
		}
		tx.Steps[i] = step

		if sd.When != "" {
			cond, err := rules.ParseCondition(sd.When)
			if err != nil {
				return nil, &model.ConfigurationError{Path: def.Type + "." + sd.ID + ".when", Message: err.Error()}
			}
			tx.when[i] = &cond
		}

		for _, rd := range sd.Rules {
			r, err := rules.Build(rd)
			if err != nil {
				return nil, &model.ConfigurationError{Path: def.Type + "." + sd.ID, Message: err.Error()}
			}
			tx.rules[i] = append(tx.rules[i], r)
		}
	}
	return tx, nil
}

// TotalSteps returns the number of steps.
func (t *Transaction) TotalSteps() int { return len(t.Steps) }

// Rules returns the rules declared on step i in configured order.
func (t *Transaction) Rules(i int) []rules.Rule {
	if i < 0 || i >= len(t.rules) {
		return nil
	}
	return t.rules[i]
}

// Visible reports whether step i is part of the path for data. Steps without
// a condition are always visible.
func (t *Transaction) Visible(i int, data model.FormData) bool {
	if i < 0 || i >= len(t.Steps) {
		return false
	}
	if i >= len(t.when) || t.when[i] == nil {
		return true
	}
	return t.when[i].Eval(data)
}

// StepIndex returns the index of the step with the given ID.
func (t *Transaction) StepIndex(id string) (int, bool) {
	for i, s := range t.Steps {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

// SelectorStep returns the index of the first step holding a marine unit
// selector and that field's ID.
func (t *Transaction) SelectorStep() (int, string, bool) {
	for i, s := range t.Steps {
		if fd, ok := s.FieldOfKind(model.KindMarineUnitSelector); ok {
			return i, fd.ID, true
		}
	}
	return 0, "", false
}

// snapshot is an immutable collection of all definitions indexed by ID.
type snapshot struct {
	domains      map[string]model.DomainDefinition
	transactions map[string]*Transaction
	checksum     string
}

// Registry is a read-optimized, thread-safe store of all loaded definitions.
// It uses atomic pointer swap for lock-free concurrent reads.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from the given definitions.
func NewRegistry(defs []model.DomainDefinition) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(defs); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace compiles defs and atomically swaps the registry contents. On error
// the previous snapshot stays in place.
func (r *Registry) Replace(defs []model.DomainDefinition) error {
	s := &snapshot{
		domains:      make(map[string]model.DomainDefinition, len(defs)),
		transactions: make(map[string]*Transaction),
	}

	var checksumParts []string

	for _, def := range defs {
		s.domains[def.Domain] = def
		checksumParts = append(checksumParts, def.Checksum)

		for _, td := range def.Transactions {
			if _, dup := s.transactions[td.Type]; dup {
				return &model.ConfigurationError{Path: td.Type, Message: "duplicate transaction type"}
			}
			tx, err := Compile(def.Domain, td)
			if err != nil {
				return err
			}
			s.transactions[td.Type] = tx
		}
	}

	sort.Strings(checksumParts)
	combined := strings.Join(checksumParts, ":")
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(combined)))

	r.snap.Store(s)
	return nil
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Loaded reports whether at least one transaction is available.
func (r *Registry) Loaded() bool {
	s := r.current()
	return s != nil && len(s.transactions) > 0
}

// GetDomain returns the domain definition with the given ID.
func (r *Registry) GetDomain(domainID string) (model.DomainDefinition, bool) {
	d, ok := r.current().domains[domainID]
	return d, ok
}

// GetTransaction returns the compiled transaction of the given type.
func (r *Registry) GetTransaction(txType string) (*Transaction, bool) {
	t, ok := r.current().transactions[txType]
	return t, ok
}

// AllTransactions returns all compiled transactions sorted by type.
func (r *Registry) AllTransactions() []*Transaction {
	s := r.current()
	out := make([]*Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// AllDomains returns all domain definitions.
func (r *Registry) AllDomains() []model.DomainDefinition {
	s := r.current()
	defs := make([]model.DomainDefinition, 0, len(s.domains))
	for _, d := range s.domains {
		defs = append(defs, d)
	}
	return defs
}

// Checksum returns the combined checksum of all loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
