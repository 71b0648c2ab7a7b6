package models

// HTTP methods understood by the dispatcher.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Event models the payload the function receives from the API Gateway
// mapping template. Submission fields are pointers so an absent key can be
// told apart from an empty string.
type Event struct {
	HTTPMethod string  `json:"httpMethod"`
	Altcha     *string `json:"altcha,omitempty"`
	Mail       *string `json:"mail,omitempty"`
	Text       *string `json:"text,omitempty"`
	Subject    *string `json:"subject,omitempty"`
	Referer    *string `json:"referer,omitempty"`
}

// Challenge is the proof-of-work puzzle handed to the browser widget.
type Challenge struct {
	Algorithm string `json:"algorithm"`
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
	Signature string `json:"signature"`
}

// ContactMessage is the single email relayed for a verified submission.
type ContactMessage struct {
	Sender    string
	Recipient string
	ReplyTo   string
	Subject   string
	Body      string
}

// StringPtr returns a pointer to v. Handy when building events by hand.
func StringPtr(v string) *string { return &v }
