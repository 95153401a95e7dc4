package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"go.uber.org/zap"
)

const (
	authParamUsername     = "USERNAME"
	authParamPassword     = "PASSWORD"
	authParamRefreshToken = "REFRESH_TOKEN"
	authParamSecretHash   = "SECRET_HASH"
)

var errMissingClientID = errors.New("cognito client id must be provided")

// CognitoAPI is the subset of the Cognito client used for authentication.
type CognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// CognitoConfig configures the Cognito identity provider.
type CognitoConfig struct {
	Client       CognitoAPI
	ClientID     string
	ClientSecret string
	Logger       *zap.Logger
}

// CognitoProvider authenticates against an AWS Cognito app client.
type CognitoProvider struct {
	client       CognitoAPI
	clientID     string
	clientSecret string
	logger       *zap.Logger
}

// NewCognitoClient loads the default AWS configuration for region and builds a Cognito client.
func NewCognitoClient(ctx context.Context, region string) (*cognitoidentityprovider.Client, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return cognitoidentityprovider.NewFromConfig(awsConfig), nil
}

// NewCognitoProvider constructs the provider.
func NewCognitoProvider(cfg CognitoConfig) (*CognitoProvider, error) {
	if cfg.Client == nil {
		return nil, errors.New("cognito client must be provided")
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errMissingClientID
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CognitoProvider{
		client:       cfg.Client,
		clientID:     clientID,
		clientSecret: cfg.ClientSecret,
		logger:       logger,
	}, nil
}

// Authenticate runs the USER_PASSWORD_AUTH flow.
func (p *CognitoProvider) Authenticate(ctx context.Context, username, password string) (TokenSet, error) {
	parameters := map[string]string{
		authParamUsername: username,
		authParamPassword: password,
	}
	if p.clientSecret != "" {
		parameters[authParamSecretHash] = p.secretHash(username)
	}
	tokens, err := p.initiate(ctx, types.AuthFlowTypeUserPasswordAuth, parameters)
	if err != nil {
		if isNotAuthorized(err) {
			return TokenSet{}, ErrInvalidCredentials
		}
		p.logger.Error("cognito authentication failed", zap.String("username", username), zap.Error(err))
		return TokenSet{}, err
	}
	return tokens, nil
}

// Refresh runs the REFRESH_TOKEN_AUTH flow. Cognito does not rotate the refresh token here.
func (p *CognitoProvider) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	tokens, err := p.initiate(ctx, types.AuthFlowTypeRefreshTokenAuth, map[string]string{
		authParamRefreshToken: refreshToken,
	})
	if err != nil {
		if isNotAuthorized(err) {
			return TokenSet{}, ErrInvalidRefreshToken
		}
		p.logger.Error("cognito refresh failed", zap.Error(err))
		return TokenSet{}, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	return tokens, nil
}

func (p *CognitoProvider) initiate(ctx context.Context, flow types.AuthFlowType, parameters map[string]string) (TokenSet, error) {
	output, err := p.client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow:       flow,
		ClientId:       aws.String(p.clientID),
		AuthParameters: parameters,
	})
	if err != nil {
		return TokenSet{}, err
	}
	if output == nil || output.AuthenticationResult == nil {
		challenge := ""
		if output != nil {
			challenge = string(output.ChallengeName)
		}
		return TokenSet{}, fmt.Errorf("cognito returned challenge %q instead of tokens", challenge)
	}
	result := output.AuthenticationResult
	return TokenSet{
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		IDToken:      aws.ToString(result.IdToken),
		ExpiresIn:    int64(result.ExpiresIn),
	}, nil
}

// secretHash is base64(HMAC-SHA256(clientSecret, username + clientID)).
func (p *CognitoProvider) secretHash(username string) string {
	mac := hmac.New(sha256.New, []byte(p.clientSecret))
	mac.Write([]byte(username + p.clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func isNotAuthorized(err error) bool {
	var notAuthorized *types.NotAuthorizedException
	var userNotFound *types.UserNotFoundException
	return errors.As(err, &notAuthorized) || errors.As(err, &userNotFound)
}
