package classifier

import "encoding/json"

// Result is the outcome of classifying one message. It is always definite:
// a failed or timed-out classification resolves to the zero value rather
// than an error, because a broken classifier must not block chat delivery.
type Result struct {
	IsPhishing bool `json:"is_phishing"`
	IsSpam     bool `json:"is_spam"`
}

type predictRequest struct {
	Message string `json:"message"`
}

// predictResponse mirrors the prediction service's response body. The
// is_phising field name preserves the upstream service's spelling as a wire
// compatibility contract.
type predictResponse struct {
	IsPhising looseBool `json:"is_phising"`
	IsSpam    looseBool `json:"is_spam"`
}

// looseBool accepts the boolean true or the literal string "true" as true
// and anything else, including an absent field, as false. The coercion is
// part of the documented contract with the prediction service.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch t := v.(type) {
	case bool:
		*b = looseBool(t)
	case string:
		*b = t == "true"
	default:
		*b = false
	}
	return nil
}
