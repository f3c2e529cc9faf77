package auth

import (
	"context"
	"fmt"

	"github.com/aperoland/aperoland-chat/config"
	"github.com/aperoland/aperoland-chat/globals"
	"github.com/aperoland/aperoland-chat/types"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Authenticate verifies a given OIDC ID-Token using the configured OIDC provider named oidcProvider.
// The "email" claim is used as id and display name of the user. It returns nil if the provider is not configured.
func Authenticate(ctx context.Context, idToken, oidcProvider string, cfg *config.Config) (*types.User, error) {
	if idToken == "" || len(cfg.OIDCConfigs) == 0 {
		return nil, nil
	}
	var oidcConf *config.OIDCConfig
	for i := range cfg.OIDCConfigs {
		if cfg.OIDCConfigs[i].Name == oidcProvider {
			oidcConf = &cfg.OIDCConfigs[i]
			break
		}
	}
	if oidcConf == nil {
		globals.AppLogger.Debug("no oidc config found for provider", "provider", oidcProvider)
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, oidcConf.ProviderUrl)
	if err != nil {
		return nil, err
	}
	conf := oidc.Config{}
	if oidcConf.ClientId == "" {
		conf.SkipClientIDCheck = true
	} else {
		conf.ClientID = oidcConf.ClientId
	}
	verifier := provider.Verifier(&conf)
	verifiedIdToken, err := verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}

	claims := struct {
		Email string `json:"email"`
	}{}
	err = verifiedIdToken.Claims(&claims)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: no email claim", ErrUnauthenticated)
	}
	return &types.User{
		Id:            claims.Email,
		Username:      claims.Email,
		Role:          "user",
		Authenticated: true,
	}, nil
}
