package telephony

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs the direct-dial flow needs are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName xml.Name  `xml:"Dial"`
	Number  string    `xml:"Number,omitempty"`
	Sip     *twimlSip `xml:"Sip,omitempty"`
}

type twimlSip struct {
	URI string `xml:",chardata"`
}

// AnswerInstructions describe what happens once a direct-dialed call is answered.
type AnswerInstructions struct {
	// ConnectTo bridges the call to the AI agent. A sip: URI dials SIP,
	// anything else is treated as a PSTN number.
	ConnectTo string
	// Fallback is spoken before hanging up when ConnectTo is empty.
	Fallback string
}

// RenderTwiML builds the TwiML document for an answered call.
func RenderTwiML(in AnswerInstructions) (string, error) {
	var r twimlResponse

	target := strings.TrimSpace(in.ConnectTo)
	switch {
	case target != "":
		d := twimlDial{}
		if strings.HasPrefix(strings.ToLower(target), "sip:") {
			d.Sip = &twimlSip{URI: target}
		} else {
			d.Number = target
		}
		r.Verbs = append(r.Verbs, d)
	default:
		if in.Fallback != "" {
			r.Verbs = append(r.Verbs, twimlSay{Text: in.Fallback})
		}
		r.Verbs = append(r.Verbs, twimlHangup{})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
