package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/avrlab/lab-projects-backend/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
	"gorm.io/gorm"
)

// Client is one authenticated session against the platform, tied to a single
// credential set from the pool.
type Client struct {
	Num        int
	Service    *youtube.Service
	HTTPClient *http.Client
}

type PoolConfig struct {
	// Number of independent credential sets, each with its own quota.
	NumClients     int    `env:"YOUTUBE_NUM_CLIENTS" envDefault:"6"`
	CredentialsDir string `env:"YOUTUBE_CREDENTIALS_DIR" envDefault:"./credentials"`
	RedirectURL    string `env:"YOUTUBE_REDIRECT_URI"`
}

// ClientPool authenticates against N pre-provisioned credential sets. Client
// secrets live on disk under CredentialsDir/<clientNum>/client_secrets.json;
// OAuth tokens are persisted in the database after a one-time authorize flow
// and refreshed transparently on later use.
type ClientPool struct {
	db     *gorm.DB
	log    *logrus.Logger
	config PoolConfig

	authSessions map[string]*AuthSession
	sessionMux   sync.RWMutex
}

func NewClientPool(db *gorm.DB, log *logrus.Logger, config PoolConfig) *ClientPool {
	if config.NumClients <= 0 {
		config.NumClients = 6
	}
	return &ClientPool{
		db:           db,
		log:          log,
		config:       config,
		authSessions: make(map[string]*AuthSession),
	}
}

func (p *ClientPool) Size() int {
	return p.config.NumClients
}

func (p *ClientPool) oauthConfig(clientNum int) (*oauth2.Config, error) {
	secretsPath := filepath.Join(p.config.CredentialsDir, strconv.Itoa(clientNum), "client_secrets.json")
	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return nil, fmt.Errorf("missing client_secrets.json for client %d: %w", clientNum, err)
	}

	config, err := google.ConfigFromJSON(data,
		youtube.YoutubeScope,
		youtube.YoutubeUploadScope,
		youtube.YoutubeForceSslScope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets for client %d: %w", clientNum, err)
	}
	if p.config.RedirectURL != "" {
		config.RedirectURL = p.config.RedirectURL
	}
	return config, nil
}

// Authenticate builds an authenticated session for the given client number
// from its stored token, refreshing it if expired. A client with no stored
// token (or a revoked one) is unusable until the authorize flow is completed
// for it again.
func (p *ClientPool) Authenticate(ctx context.Context, clientNum int) (*Client, error) {
	config, err := p.oauthConfig(clientNum)
	if err != nil {
		return nil, err
	}

	var creds models.YouTubeCredentials
	err = p.db.Where("client_num = ? AND is_active = ?", clientNum, true).First(&creds).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("no stored token for client %d, complete the authorize flow first", clientNum)
		}
		return nil, fmt.Errorf("error fetching credentials for client %d: %w", clientNum, err)
	}

	stored := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.TokenExpiresAt,
	}

	source := config.TokenSource(ctx, stored)
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("token for client %d is invalid or revoked: %w", clientNum, err)
	}

	// Persist the refreshed token so the next authentication skips the
	// refresh round trip.
	if token.AccessToken != stored.AccessToken {
		updates := map[string]interface{}{
			"access_token":     token.AccessToken,
			"token_expires_at": token.Expiry,
		}
		if token.RefreshToken != "" {
			updates["refresh_token"] = token.RefreshToken
		}
		if err := p.db.Model(&models.YouTubeCredentials{}).
			Where("id = ?", creds.ID).
			Updates(updates).Error; err != nil {
			p.log.WithError(err).Warnf("failed to persist refreshed token for client %d", clientNum)
		}
	}

	// ReuseTokenSource keeps refreshing mid-operation; uploads can outlive
	// a single access token.
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source))
	service, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service for client %d: %w", clientNum, err)
	}

	return &Client{
		Num:        clientNum,
		Service:    service,
		HTTPClient: httpClient,
	}, nil
}

// AuthURL starts the one-time authorize flow for a client and returns the
// consent page URL to redirect the operator to.
func (p *ClientPool) AuthURL(clientNum int) (string, error) {
	if clientNum < 1 || clientNum > p.config.NumClients {
		return "", fmt.Errorf("client number %d out of range", clientNum)
	}

	config, err := p.oauthConfig(clientNum)
	if err != nil {
		return "", err
	}

	state, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	p.sessionMux.Lock()
	p.authSessions[state] = &AuthSession{
		Token:     state,
		ClientNum: clientNum,
		CreatedAt: time.Now(),
	}
	p.sessionMux.Unlock()

	return config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// ValidateState resolves the state token from the authorize callback to the
// client number it was issued for.
func (p *ClientPool) ValidateState(state string) (int, error) {
	p.sessionMux.Lock()
	defer p.sessionMux.Unlock()

	session, exists := p.authSessions[state]
	if !exists {
		return 0, fmt.Errorf("session not found")
	}

	// Check if session is expired (30 minutes)
	if time.Since(session.CreatedAt) > 30*time.Minute {
		delete(p.authSessions, state)
		return 0, fmt.Errorf("session expired")
	}

	if session.Used {
		delete(p.authSessions, state)
		return 0, fmt.Errorf("session already used")
	}

	session.Used = true

	go p.cleanupOldSessions()

	return session.ClientNum, nil
}

// cleanupOldSessions removes expired sessions
func (p *ClientPool) cleanupOldSessions() {
	p.sessionMux.Lock()
	defer p.sessionMux.Unlock()

	now := time.Now()
	for token, session := range p.authSessions {
		if now.Sub(session.CreatedAt) > 30*time.Minute || session.Used {
			delete(p.authSessions, token)
		}
	}
}

// ExchangeAndSaveToken finishes the authorize flow for a client: exchanges
// the authorization code, verifies the token with a channel lookup, and
// stores the token for future Authenticate calls.
func (p *ClientPool) ExchangeAndSaveToken(ctx context.Context, clientNum int, code string) error {
	config, err := p.oauthConfig(clientNum)
	if err != nil {
		return err
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for client %d: %w", clientNum, err)
	}

	// Verify the token by making a test API call
	httpClient := config.Client(ctx, token)
	service, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("failed to create YouTube service: %w", err)
	}

	channels, err := service.Channels.List([]string{"snippet"}).Mine(true).Do()
	if err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}

	// Deactivate any existing credentials
	if err := p.db.Model(&models.YouTubeCredentials{}).
		Where("client_num = ? AND is_active = ?", clientNum, true).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate existing credentials: %w", err)
	}

	creds := &models.YouTubeCredentials{
		ClientNum:      clientNum,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenType:      token.TokenType,
		TokenExpiresAt: token.Expiry,
		IsActive:       true,
	}

	if err := p.db.Create(creds).Error; err != nil {
		return fmt.Errorf("failed to save new credentials: %w", err)
	}

	for _, channel := range channels.Items {
		details := &models.YouTubeChannelDetails{
			CredentialsID: creds.ID,
			ChannelID:     channel.Id,
			ChannelTitle:  channel.Snippet.Title,
		}
		if err := p.db.Create(details).Error; err != nil {
			return fmt.Errorf("failed to save channel details: %w", err)
		}
	}

	p.log.Infof("client %d authorized for %d channel(s)", clientNum, len(channels.Items))
	return nil
}
