package admintoken

import (
	"testing"

	"github.com/smallbiznis/blsuntech/internal/config"
	"go.uber.org/zap"
)

func TestHashRoundTrip(t *testing.T) {
	encoded, err := Hash("s3cret-token")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ValidateHash(encoded); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !VerifyHash("s3cret-token", encoded) {
		t.Fatalf("expected token to verify")
	}
	if VerifyHash("s3cret-tokem", encoded) {
		t.Fatalf("expected wrong token to fail")
	}
}

func TestValidateHashRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$a2V5",
	} {
		if err := ValidateHash(encoded); err == nil {
			t.Fatalf("expected %q to be rejected", encoded)
		}
	}
}

func TestVerifierPlainToken(t *testing.T) {
	v := New(config.Config{Admin: config.AdminConfig{Token: "letmein"}}, zap.NewNop())
	if !v.Verify("letmein") {
		t.Fatalf("expected plain token to verify")
	}
	for _, bad := range []string{"", "letmei", "letmein2", "LETMEIN"} {
		if v.Verify(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestVerifierHashedToken(t *testing.T) {
	encoded, err := Hash("hashed-token")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	v := New(config.Config{Admin: config.AdminConfig{TokenHash: encoded}}, zap.NewNop())
	if !v.Verify("hashed-token") {
		t.Fatalf("expected hashed token to verify")
	}
	if v.Verify("other") {
		t.Fatalf("expected other token to be rejected")
	}
}

func TestVerifierUnconfiguredRejectsEverything(t *testing.T) {
	v := New(config.Config{Admin: config.AdminConfig{TokenHash: "not-a-hash"}}, zap.NewNop())
	if v.Configured() {
		t.Fatalf("invalid hash must not count as configured")
	}
	if v.Verify("") || v.Verify("anything") {
		t.Fatalf("unconfigured verifier must reject")
	}
}
