package auth

import (
	"context"
	"strings"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// MaxAttempts bounds failed login/register rounds in one Authenticate call
const MaxAttempts = 3

// Asker returns the answer to one prompt. An error (usually io.EOF) ends
// the flow.
type Asker func(prompt string) (string, error)

// Authenticate asks "Login (l) or Register (r)?" followed by username and
// password and returns the resulting principal. Failed rounds are passed
// to report and retried up to MaxAttempts times.
func (s *Service) Authenticate(ctx context.Context, ask Asker, report func(error)) (*Principal, error) {
	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		choice, err := ask("Login (l) or Register (r)? ")
		if err != nil {
			return nil, err
		}
		choice = strings.ToLower(strings.TrimSpace(choice))
		if choice != "l" && choice != "r" && choice != "login" && choice != "register" {
			lastErr = mdwerror.InvalidInput("answer l to log in or r to register, got %q", choice)
			report(lastErr)
			continue
		}

		username, err := ask("Username: ")
		if err != nil {
			return nil, err
		}
		password, err := ask("Password: ")
		if err != nil {
			return nil, err
		}

		var p *Principal
		if strings.HasPrefix(choice, "r") {
			p, err = s.Register(ctx, username, password)
		} else {
			p, err = s.Login(ctx, username, password)
		}
		if err == nil {
			return p, nil
		}
		lastErr = err
		report(err)
	}
	return nil, mdwerror.Wrap(lastErr, "too many failed attempts").WithCode(mdwerror.CodeUnauthorized)
}
