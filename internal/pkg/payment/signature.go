package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifyWebhookSignature checks the x-signature header Mercado Pago sends
// with webhook deliveries. The header carries "ts=<unix>,v1=<hex hmac>";
// v1 is an HMAC-SHA256 over the manifest built from the x-request-id
// header and the timestamp.
func VerifyWebhookSignature(signatureHeader, requestID, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	ts, v1 := parseSignatureHeader(sig)
	if ts == "" || v1 == "" {
		return false
	}

	expectedSig, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil {
		return false
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", requestID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hmac.Equal(mac.Sum(nil), expectedSig)
}

func parseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	return ts, v1
}
