package telephony

import (
	"strings"
	"testing"
)

func TestRenderTwiMLConnectSIP(t *testing.T) {
	xml, err := RenderTwiML(AnswerInstructions{ConnectTo: "sip:agent@sip.vapi.ai"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if want := "<Sip>sip:agent@sip.vapi.ai</Sip>"; !strings.Contains(xml, want) {
		t.Fatalf("expected %q in xml: %s", want, xml)
	}
	if strings.Contains(xml, "<Hangup") {
		t.Fatalf("did not expect hangup when connecting: %s", xml)
	}
}

func TestRenderTwiMLConnectNumber(t *testing.T) {
	xml, err := RenderTwiML(AnswerInstructions{ConnectTo: "+15551234567"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if want := "<Number>+15551234567</Number>"; !strings.Contains(xml, want) {
		t.Fatalf("expected %q in xml: %s", want, xml)
	}
}

func TestRenderTwiMLFallbackHangsUp(t *testing.T) {
	xml, err := RenderTwiML(AnswerInstructions{Fallback: "Sorry, please try later."})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	sayAt := strings.Index(xml, "<Say>Sorry, please try later.</Say>")
	hangupAt := strings.Index(xml, "<Hangup>")
	if sayAt < 0 || hangupAt < 0 || sayAt > hangupAt {
		t.Fatalf("expected say then hangup: %s", xml)
	}
}
