package admintoken

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/smallbiznis/blsuntech/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("admintoken",
	fx.Provide(New),
)

// Verifier authorises admin requests against a plain token, an Argon2id
// hash, or both. With neither configured every token is rejected.
type Verifier struct {
	tokenSum [sha256.Size]byte
	hasToken bool
	hash     string
}

func New(cfg config.Config, log *zap.Logger) *Verifier {
	v := &Verifier{}
	if token := strings.TrimSpace(cfg.Admin.Token); token != "" {
		v.tokenSum = sha256.Sum256([]byte(token))
		v.hasToken = true
	}
	if hash := strings.TrimSpace(cfg.Admin.TokenHash); hash != "" {
		if err := ValidateHash(hash); err != nil {
			log.Error("INTAKE_ADMIN_TOKEN_HASH is not a valid argon2id hash; ignoring it")
		} else {
			v.hash = hash
		}
	}
	if !v.Configured() {
		log.Warn("no admin token configured; admin endpoints will reject every request")
	}
	return v
}

func (v *Verifier) Configured() bool {
	return v != nil && (v.hasToken || v.hash != "")
}

// Verify compares presented in constant time. Digests are compared so the
// token length does not leak.
func (v *Verifier) Verify(presented string) bool {
	if !v.Configured() {
		return false
	}
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return false
	}
	if v.hasToken {
		sum := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(sum[:], v.tokenSum[:]) == 1 {
			return true
		}
	}
	if v.hash != "" {
		return VerifyHash(presented, v.hash)
	}
	return false
}
