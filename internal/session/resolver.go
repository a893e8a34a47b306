package session

import (
	"context"

	"github.com/VladimirHumeniuk/custiq-backend/internal/apperr"
	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

// Resolve looks a session up by participant token, by id, or both. Two
// classes of caller exist: anonymous participants holding only the opaque
// token, and owners holding the id plus a separate identity proof. The rules:
//
//   - no key at all is an invalid request;
//   - a token is tried first; a hit wins regardless of any supplied id;
//   - a token miss falls back to the id, but the resolved record's stored
//     token must then equal the supplied one, otherwise Forbidden — holding
//     an unrelated token must not let a caller read a guessed id;
//   - an id alone resolves with no token check (ownership is proven
//     elsewhere on those paths).
func (s *Service) Resolve(ctx context.Context, token, id string) (*repository.Session, error) {
	if token == "" && id == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "either token or session id is required")
	}

	if token != "" {
		sess, err := s.repo.GetSessionByToken(ctx, token)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to look up session", err)
		}
		if sess != nil {
			return sess, nil
		}
		if id == "" {
			return nil, apperr.New(apperr.KindNotFound, "session not found")
		}
		sess, err = s.repo.GetSessionByID(ctx, id)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to look up session", err)
		}
		if sess == nil {
			return nil, apperr.New(apperr.KindNotFound, "session not found")
		}
		if sess.SessionToken != token {
			return nil, apperr.New(apperr.KindForbidden, "session token does not match session id")
		}
		return sess, nil
	}

	sess, err := s.repo.GetSessionByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to look up session", err)
	}
	if sess == nil {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	return sess, nil
}
