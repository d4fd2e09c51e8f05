package auth

// Scope narrows a read or write to the rows the principal may touch. Services
// translate it into repository predicates; it is never applied as a post-hoc
// filter, so totals and pagination stay consistent with what the caller can see.
type Scope string

const (
	// ScopeNone allows the operation but matches no rows: lists come back
	// empty and gets answer not-found.
	ScopeNone Scope = "none"
	// ScopeMine matches rows owned by the principal (own user row, own
	// doctor/patient profile, appointments and records where the principal
	// is the patient or the doctor).
	ScopeMine Scope = "mine"
	// ScopeLinked matches patients connected to a doctor through at least
	// one shared appointment.
	ScopeLinked Scope = "linked"
	// ScopeAll matches every row.
	ScopeAll Scope = "all"
)

// Rule is one cell of the permission matrix. A nil Fields means every field
// of the entity may be written; otherwise writes are intersected with Fields
// and out-of-set values are silently dropped.
type Rule struct {
	Scope  Scope
	Fields []string
}

// Decision is the result of evaluating a principal against an entity and
// operation. Allowed=false carries the reason shown to the caller.
type Decision struct {
	Allowed bool
	Scope   Scope
	Fields  []string
	Reason  string
}

// FieldAllowed reports whether the decision permits writing the named field.
func (d Decision) FieldAllowed(name string) bool {
	if d.Fields == nil {
		return true
	}
	for _, f := range d.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// RuleKey addresses one cell of the permission matrix.
type RuleKey struct {
	Role   string
	Entity string
	Op     string
}

// Engine evaluates the permission matrix. Evaluation is a pure table lookup:
// same inputs, same decision, no state.
type Engine struct {
	rules map[RuleKey]Rule
}

// NewEngine creates a policy engine from the given rule table.
func NewEngine(rules map[RuleKey]Rule) *Engine {
	return &Engine{rules: rules}
}

// NewDefaultEngine creates a policy engine with the standard permission matrix.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultRules())
}

// DefaultRules returns the standard permission matrix. Absent cells are hard
// denials; read cells with ScopeNone are allowed but match nothing, which
// keeps reads degrading to empty results instead of transport errors.
func DefaultRules() map[RuleKey]Rule {
	rules := make(map[RuleKey]Rule)

	// Admins hold every operation on every entity, unscoped.
	entities := []string{EntityUser, EntityDoctor, EntityPatient, EntityAppointment, EntityMedicalRecord}
	ops := []string{OpList, OpGet, OpSearch, OpCreate, OpUpdate}
	for _, entity := range entities {
		for _, op := range ops {
			rules[RuleKey{RoleAdmin, entity, op}] = Rule{Scope: ScopeAll}
		}
	}

	// Users: non-admins may read their own account, nothing else.
	for _, role := range []string{RoleDoctor, RolePatient} {
		rules[RuleKey{role, EntityUser, OpList}] = Rule{Scope: ScopeNone}
		rules[RuleKey{role, EntityUser, OpSearch}] = Rule{Scope: ScopeNone}
		rules[RuleKey{role, EntityUser, OpGet}] = Rule{Scope: ScopeMine}
	}

	// Doctors: a public directory. Anyone, including anonymous callers, may
	// read and search; doctors may update their own profile.
	for _, role := range []string{RoleDoctor, RolePatient, RoleAnonymous} {
		rules[RuleKey{role, EntityDoctor, OpList}] = Rule{Scope: ScopeAll}
		rules[RuleKey{role, EntityDoctor, OpGet}] = Rule{Scope: ScopeAll}
		rules[RuleKey{role, EntityDoctor, OpSearch}] = Rule{Scope: ScopeAll}
	}
	rules[RuleKey{RoleDoctor, EntityDoctor, OpUpdate}] = Rule{Scope: ScopeMine}

	// Patients: doctors see and update patients they share an appointment
	// with; patients see and update themselves.
	for _, op := range []string{OpList, OpGet, OpSearch, OpUpdate} {
		rules[RuleKey{RoleDoctor, EntityPatient, op}] = Rule{Scope: ScopeLinked}
		rules[RuleKey{RolePatient, EntityPatient, op}] = Rule{Scope: ScopeMine}
	}

	// Appointments: doctors work their own calendar; patients see their own
	// bookings and may only touch the notes field.
	for _, op := range []string{OpList, OpGet, OpSearch} {
		rules[RuleKey{RoleDoctor, EntityAppointment, op}] = Rule{Scope: ScopeMine}
		rules[RuleKey{RolePatient, EntityAppointment, op}] = Rule{Scope: ScopeMine}
	}
	rules[RuleKey{RoleDoctor, EntityAppointment, OpCreate}] = Rule{Scope: ScopeMine}
	rules[RuleKey{RoleDoctor, EntityAppointment, OpUpdate}] = Rule{Scope: ScopeMine}
	rules[RuleKey{RolePatient, EntityAppointment, OpUpdate}] = Rule{Scope: ScopeMine, Fields: []string{"notes"}}

	// Medical records: doctors read and write records they authored;
	// patients read their own history but never write it.
	for _, op := range []string{OpList, OpGet, OpSearch} {
		rules[RuleKey{RoleDoctor, EntityMedicalRecord, op}] = Rule{Scope: ScopeMine}
		rules[RuleKey{RolePatient, EntityMedicalRecord, op}] = Rule{Scope: ScopeMine}
	}
	rules[RuleKey{RoleDoctor, EntityMedicalRecord, OpCreate}] = Rule{Scope: ScopeMine}
	rules[RuleKey{RoleDoctor, EntityMedicalRecord, OpUpdate}] = Rule{Scope: ScopeMine}

	return rules
}

// denyMessages maps denied (entity, operation) pairs to the message surfaced
// to the caller. Pairs not listed here fall back to "Permission denied".
var denyMessages = map[[2]string]string{
	{EntityDoctor, OpCreate}:        "Only admins can create doctors",
	{EntityPatient, OpCreate}:       "Only admins can create patients",
	{EntityAppointment, OpCreate}:   "Only doctors and admins can create appointments",
	{EntityMedicalRecord, OpCreate}: "Only doctors and admins can create medical records",
}

// DenyMessage returns the user-facing message for a denied operation.
func DenyMessage(entity, op string) string {
	if msg, ok := denyMessages[[2]string{entity, op}]; ok {
		return msg
	}
	return "Permission denied"
}

// Evaluate looks up the rule for (principal role, entity, operation). A
// missing cell is a denial carrying the operation's deny message.
func (e *Engine) Evaluate(p Principal, entity, op string) Decision {
	rule, ok := e.rules[RuleKey{p.Role, entity, op}]
	if !ok {
		return Decision{Allowed: false, Scope: ScopeNone, Reason: DenyMessage(entity, op)}
	}
	return Decision{Allowed: true, Scope: rule.Scope, Fields: rule.Fields}
}
