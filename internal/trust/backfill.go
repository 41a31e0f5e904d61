package trust

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// fetchProfile asks the identity service for the caller's profile
// attributes. The call is best-effort: any failure (service unreachable,
// timeout, bad payload) returns nil and the request proceeds with the
// partial identity from the claims.
func (v *Verifier) fetchProfile(ctx context.Context, rawToken string) map[string]any {
	base := strings.TrimRight(strings.TrimSpace(v.cfg.ProfileBaseURL), "/")
	if base == "" {
		return nil
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v0/profile", nil)
	if errReq != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+rawToken)

	resp, errDo := v.client.Do(req)
	if errDo != nil {
		log.WithError(errDo).Debug("profile backfill unreachable")
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var body struct {
		Profile map[string]any `json:"profile"`
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(&body); errDecode != nil {
		log.WithError(errDecode).Debug("profile backfill decode failed")
		return nil
	}
	return body.Profile
}
