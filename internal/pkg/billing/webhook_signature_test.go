package billing

import (
	"testing"
)

func TestVerifyLinkWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"checkout.completed","data":{"id":"chk_1"}}`)
	secret := "top-secret"

	validSig := SignLinkPayload(payload, secret)
	if !VerifyLinkWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifyLinkWebhookSignature(payload, "sha256="+validSig, secret) {
		t.Fatalf("expected prefixed signature to validate")
	}
	if VerifyLinkWebhookSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifyLinkWebhookSignature(payload, "not-hex", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
	if VerifyLinkWebhookSignature(append(payload, ' '), validSig, secret) {
		t.Fatalf("expected tampered payload to fail")
	}
	if VerifyLinkWebhookSignature(payload, validSig, "") {
		t.Fatalf("expected missing secret to fail")
	}
	if VerifyLinkWebhookSignature(payload, "", secret) {
		t.Fatalf("expected missing signature to fail")
	}
}
