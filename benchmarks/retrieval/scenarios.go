// ABOUTME: Benchmark scenarios for retrieval quality over requirements documents
// ABOUTME: Each scenario pairs a document with questions and the requirement labels that answer them
package retrieval

// Scenario is one retrieval benchmark
type Scenario struct {
	ID          string
	Name        string
	Description string
	Document    string
	// Pins are analyst notes pinned to the session before any query
	Pins    []string
	Queries []Query
}

// Query is a question and the requirement labels a good retrieval surfaces
type Query struct {
	Text     string
	Expected []string
}

// Result is the outcome of one scenario
type Result struct {
	ScenarioID    string         `json:"scenario_id"`
	ScenarioName  string         `json:"scenario_name"`
	ContextRecall float64        `json:"context_recall"`
	MRR           float64        `json:"mrr"`
	PinnedRecall  float64        `json:"pinned_recall"`
	Status        string         `json:"status"`
	Details       []QueryOutcome `json:"details"`
	ErrorMessage  string         `json:"error,omitempty"`
}

// QueryOutcome records what one query retrieved
type QueryOutcome struct {
	Query     string   `json:"query"`
	Retrieved []string `json:"retrieved"`
	Missing   []string `json:"missing,omitempty"`
	FirstHit  int      `json:"first_hit"`
}

// LoginService covers authentication requirements
func LoginService() Scenario {
	return Scenario{
		ID:          "login",
		Name:        "Login service",
		Description: "Authentication and session handling requirements",
		Document: `Login service requirements.

SEC-1: Users authenticate with a password and a one-time code from an authenticator app.
SEC-2: Session tokens expire after 15 minutes of inactivity and are invalidated on logout.
SEC-3: Passwords are stored with a salted memory-hard hash such as argon2id.
SEC-4: Accounts lock for 30 minutes after five consecutive failed login attempts.
FR-5: The service exports audit logs to the central log store every hour.
FR-6: Administrators can reset a user's one-time code enrollment.
`,
		Queries: []Query{
			{Text: "When do session tokens expire after inactivity?", Expected: []string{"SEC-2"}},
			{Text: "How are passwords stored and hashed?", Expected: []string{"SEC-3"}},
			{Text: "What happens after failed login attempts?", Expected: []string{"SEC-4"}},
			{Text: "one-time code enrollment and authentication", Expected: []string{"SEC-1", "FR-6"}},
		},
	}
}

// Payments covers cardholder data requirements
func Payments() Scenario {
	return Scenario{
		ID:          "payments",
		Name:        "Payments",
		Description: "Cardholder data and refund workflow requirements",
		Document: `PAY-1: Card numbers are encrypted at rest with AES-256 and keys rotate every 90 days.
PAY-2: All payment traffic uses TLS 1.2 or newer with certificate pinning in the mobile app.
PAY-3: Refunds above 500 dollars require approval from two finance operators.
PAY-4: Payment logs never contain full card numbers and are retained for one year.
`,
		Queries: []Query{
			{Text: "Are card numbers encrypted at rest?", Expected: []string{"PAY-1"}},
			{Text: "refunds approval finance operators", Expected: []string{"PAY-3"}},
			{Text: "payment traffic TLS certificate pinning", Expected: []string{"PAY-2"}},
		},
	}
}

// PinnedNotes checks that analyst notes reach every retrieval
func PinnedNotes() Scenario {
	return Scenario{
		ID:          "pinned",
		Name:        "Pinned notes",
		Description: "Pinned analyst notes appear in context regardless of the question",
		Document: `API-1: Public endpoints are rate limited to 100 requests per minute per key.
API-2: API keys are scoped to a single project and can be revoked immediately.
`,
		Pins: []string{
			"Treat the partner gateway as untrusted.",
			"Rate limits are enforced at the edge, not in the service.",
		},
		Queries: []Query{
			{Text: "How are API keys revoked?", Expected: []string{"API-2"}},
			{Text: "rate limited public endpoints", Expected: []string{"API-1"}},
		},
	}
}

// AllScenarios returns every benchmark scenario
func AllScenarios() []Scenario {
	return []Scenario{LoginService(), Payments(), PinnedNotes()}
}

// ScenarioByID looks up a scenario
func ScenarioByID(id string) (Scenario, bool) {
	for _, s := range AllScenarios() {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}
