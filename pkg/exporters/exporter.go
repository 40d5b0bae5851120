// Package exporters implements one deliverable.Exporter per delivery
// platform (Slack, Notion, Gmail, email, download), each satisfying
// the narrow interface pkg/deliverable defines so the generation
// engine never imports a concrete platform SDK.
package exporters

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/platformsync"
)

// Credentials is the decrypted auth material an exporter needs to
// call its platform's API on a user's behalf.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TeamID       string
}

// CredentialResolver looks up a user's decrypted credentials for a
// platform. Exporters that don't require auth (download) never call
// it.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, platform domain.Platform) (Credentials, error)
}

// ConnectionCredentialResolver adapts pkg/platformsync's connection
// store and token manager into a CredentialResolver, so exporters
// reuse the same encrypted-at-rest credential path the sync engine
// already does instead of a second decryption path.
type ConnectionCredentialResolver struct {
	connections platformsync.ConnectionStore
	tokens      *platformsync.TokenManager
}

// NewConnectionCredentialResolver builds a ConnectionCredentialResolver.
func NewConnectionCredentialResolver(connections platformsync.ConnectionStore, tokens *platformsync.TokenManager) *ConnectionCredentialResolver {
	return &ConnectionCredentialResolver{connections: connections, tokens: tokens}
}

// Resolve fetches the user's connection for platform and decrypts its
// stored tokens.
func (r *ConnectionCredentialResolver) Resolve(ctx context.Context, userID uuid.UUID, platform domain.Platform) (Credentials, error) {
	conn, err := r.connections.GetConnection(ctx, userID, platform)
	if err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	creds.TeamID = conn.TeamID
	if conn.EncryptedAccessToken != "" {
		accessToken, err := r.tokens.Decrypt(conn.EncryptedAccessToken)
		if err != nil {
			return Credentials{}, err
		}
		creds.AccessToken = accessToken
	}
	if conn.EncryptedRefreshToken != "" {
		refreshToken, err := r.tokens.Decrypt(conn.EncryptedRefreshToken)
		if err != nil {
			return Credentials{}, err
		}
		creds.RefreshToken = refreshToken
	}
	return creds, nil
}

// option reads a destination option, returning def when absent.
func option(dest domain.Destination, key, def string) string {
	if dest.Options == nil {
		return def
	}
	if v, ok := dest.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// firstLine returns the first non-empty line of content, stripped of
// any leading markdown heading marker, used as a default subject/
// title when a destination has no explicit one.
func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if trimmed != "" {
			return strings.TrimSpace(trimmed)
		}
	}
	return "YARNNN Deliverable"
}
