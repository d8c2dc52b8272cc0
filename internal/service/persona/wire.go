package persona

// GreetingResponse is the JSON body of POST /api/scammer/greeting.
type GreetingResponse struct {
	Success    bool   `json:"success"`
	ScenarioID string `json:"scenario_id,omitempty"`
	CallType   string `json:"call_type,omitempty"`
	Persona    string `json:"persona,omitempty"`
	Greeting   string `json:"greeting,omitempty"`
	CallerName string `json:"caller_name,omitempty"`
	CallTime   string `json:"call_time,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Voice      string `json:"voice,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RespondRequest is the JSON body of POST /api/scammer/respond.
type RespondRequest struct {
	Message             string         `json:"message"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
	ScenarioID          string         `json:"scenario_id"`
	MessageCount        int            `json:"message_count"`
}

// RespondResponse is the JSON reply of POST /api/scammer/respond.
// The contract only requires response and message_count; success is optional
// and only an explicit false marks a rejection.
type RespondResponse struct {
	Success      *bool  `json:"success,omitempty"`
	Response     string `json:"response,omitempty"`
	MessageCount int    `json:"message_count,omitempty"`
	Persona      string `json:"persona,omitempty"`
	ScenarioID   string `json:"scenario_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Rejected reports whether the service explicitly refused the request.
func (r RespondResponse) Rejected() bool {
	return r.Success != nil && !*r.Success
}

const greetingSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "scenario_id": {"type": "string"},
    "call_type": {"type": "string"},
    "persona": {"type": "string"},
    "greeting": {"type": "string"},
    "caller_name": {"type": "string"},
    "call_time": {"type": "string"},
    "phone": {"type": "string"},
    "voice": {"type": "string"},
    "error": {"type": "string"}
  }
}`

const respondSchema = `{
  "type": "object",
  "properties": {
    "success": {"type": "boolean"},
    "response": {"type": "string"},
    "message_count": {"type": "integer", "minimum": 0},
    "persona": {"type": "string"},
    "scenario_id": {"type": "string"},
    "error": {"type": "string"}
  }
}`
