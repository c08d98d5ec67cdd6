package cloudapi

import (
	"context"
	"fmt"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/response"
)

// SendVideo is not implemented.
func (c *Client) SendVideo(ctx context.Context, to, caption, videoURL string) (*response.Result, error) {
	return nil, fmt.Errorf("cloudapi: send video: %w", ErrNotImplemented)
}

// SendAudio is not implemented.
func (c *Client) SendAudio(ctx context.Context, to, audioURL string) (*response.Result, error) {
	return nil, fmt.Errorf("cloudapi: send audio: %w", ErrNotImplemented)
}

// SendSticker is not implemented.
func (c *Client) SendSticker(ctx context.Context, to, stickerURL string) (*response.Result, error) {
	return nil, fmt.Errorf("cloudapi: send sticker: %w", ErrNotImplemented)
}

// SendChatAction is not implemented.
func (c *Client) SendChatAction(ctx context.Context, to, action string) (*response.Result, error) {
	return nil, fmt.Errorf("cloudapi: send chat action: %w", ErrNotImplemented)
}

// GetUserProfile is not implemented.
func (c *Client) GetUserProfile(ctx context.Context, waID string) (*response.Result, error) {
	return nil, fmt.Errorf("cloudapi: get user profile: %w", ErrNotImplemented)
}

// GetUserStatus is not implemented.
func (c *Client) GetUserStatus(ctx context.Context, waID string) (*response.Result, error) {
	return nil, fmt.Errorf("cloudapi: get user status: %w", ErrNotImplemented)
}

// GetUserProfilePicture is not implemented.
func (c *Client) GetUserProfilePicture(ctx context.Context, waID string) (*response.Result, error) {
	return nil, fmt.Errorf("cloudapi: get user profile picture: %w", ErrNotImplemented)
}

// GetUserStatusPicture is not implemented.
func (c *Client) GetUserStatusPicture(ctx context.Context, waID string) (*response.Result, error) {
	return nil, fmt.Errorf("cloudapi: get user status picture: %w", ErrNotImplemented)
}
