package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TwilioStatusForm captures the status callback fields we use.
// Twilio sends application/x-www-form-urlencoded.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type TwilioStatusForm struct {
	CallSid      string
	AccountSid   string
	From         string
	To           string
	Direction    string
	CallStatus   string
	CallDuration string
	RecordingUrl string
	Timestamp    string
}

var ErrMissingCallSid = errors.New("telephony: CallSid is required")

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	f := TwilioStatusForm{
		CallSid:      strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:   r.PostFormValue("AccountSid"),
		From:         strings.TrimSpace(r.PostFormValue("From")),
		To:           strings.TrimSpace(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		CallStatus:   strings.TrimSpace(r.PostFormValue("CallStatus")),
		CallDuration: r.PostFormValue("CallDuration"),
		RecordingUrl: r.PostFormValue("RecordingUrl"),
		Timestamp:    r.PostFormValue("Timestamp"),
	}
	if f.CallSid == "" {
		return f, ErrMissingCallSid
	}
	return f, nil
}

// ToStatusUpdate normalizes the form. now is used when Timestamp is absent or malformed.
func (f TwilioStatusForm) ToStatusUpdate(now time.Time) StatusUpdate {
	u := StatusUpdate{
		CallSID:      f.CallSid,
		Status:       f.CallStatus,
		RecordingURL: f.RecordingUrl,
		OccurredAt:   now.UTC(),
	}
	if d, err := strconv.Atoi(f.CallDuration); err == nil && d > 0 {
		u.DurationSeconds = d
	}
	if ts := parseTwilioTime(f.Timestamp); ts != nil {
		u.OccurredAt = *ts
	}
	return u
}

// TwilioSignature computes X-Twilio-Signature for a POST to fullURL:
// base64(HMAC-SHA1(authToken, fullURL + k1 + v1 + k2 + v2 ...)) with keys sorted.
func TwilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidTwilioSignature reports whether signature matches the request parameters.
func ValidTwilioSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	expected := TwilioSignature(authToken, fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}
