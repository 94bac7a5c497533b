package controllers

import (
	"net/http"

	"github.com/reliefbridge/fundledger/api/middleware"
	"github.com/reliefbridge/fundledger/pkg/auth"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
)

func requireActor(r *http.Request) (auth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return actor, nil
}
