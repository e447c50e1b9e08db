package storage

import (
	"context"

	"google.golang.org/api/option"
)

// Factory selects the provider for one request.
type Factory struct {
	local     *Local
	driveOpts []option.ClientOption
}

// NewFactory returns a factory whose fallback writes below localPath. driveOpts are passed to
// every Drive client.
func NewFactory(localPath string, driveOpts ...option.ClientOption) (*Factory, error) {
	local, err := NewLocal(localPath)
	if err != nil {
		return nil, err
	}
	return &Factory{local: local, driveOpts: driveOpts}, nil
}

// Local is the shared fallback provider.
func (f *Factory) Local() *Local { return f.local }

// ForAccessToken returns Drive when accessToken is non-empty and the local fallback otherwise.
func (f *Factory) ForAccessToken(ctx context.Context, accessToken string) (Provider, error) {
	if accessToken == "" {
		return f.local, nil
	}
	return NewDrive(ctx, accessToken, f.driveOpts...)
}
