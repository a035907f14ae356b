package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a tester account password with bcrypt.  Cost
// comes from the BCRYPT_COST setting so deployments can tune hashing
// against bulk admin provisioning latency.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt
// hash.  The comparison is constant-time; callers treat false as an
// invalid-credentials condition without distinguishing the cause.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
