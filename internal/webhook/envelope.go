package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Transaction is the canonical record extracted from a webhook, whichever
// envelope shape carried it. It is never persisted on its own; its facts are
// absorbed into order metadata and notes during reconciliation.
type Transaction struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	ReferenceUUID string `json:"referenceUUID"`
	Message       string `json:"message,omitempty"`
}

func (t Transaction) valid() bool {
	return t.ID != "" && t.Status != "" && t.ReferenceUUID != ""
}

// ErrValidation covers every structurally invalid inbound payload. Handlers
// map it to HTTP 400.
var ErrValidation = errors.New("invalid webhook payload")

// Parse validates a raw webhook body and extracts the transaction record.
// The canonical shape {event, data:{transaction:{...}}} is tried first; for
// backward compatibility a flat transaction at the top level is accepted
// too. The returned event name is empty for the legacy shape.
func Parse(body []byte) (event string, tx Transaction, err error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", Transaction{}, fmt.Errorf("%w: empty body", ErrValidation)
	}

	var canonical struct {
		Event string `json:"event"`
		Data  struct {
			Transaction Transaction `json:"transaction"`
		} `json:"data"`
	}
	if jerr := json.Unmarshal(body, &canonical); jerr != nil {
		return "", Transaction{}, fmt.Errorf("%w: not valid JSON", ErrValidation)
	}
	if canonical.Event != "" && canonical.Data.Transaction.valid() {
		return canonical.Event, canonical.Data.Transaction, nil
	}

	var legacy Transaction
	// The body already parsed as JSON above, so this cannot fail.
	_ = json.Unmarshal(body, &legacy)
	if legacy.valid() {
		return "", legacy, nil
	}

	return "", Transaction{}, fmt.Errorf("%w: missing required fields (id, status, referenceUUID)", ErrValidation)
}
