package auth

import (
	"context"

	"github.com/drivemirror/drivemirror/internal/types"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type ServiceFactory struct {
	manager *Manager
}

func NewServiceFactory(manager *Manager) *ServiceFactory {
	return &ServiceFactory{manager: manager}
}

func (f *ServiceFactory) CreateDriveService(ctx context.Context, creds *types.Credentials) (*drive.Service, error) {
	client := f.manager.GetHTTPClient(ctx, creds)
	return drive.NewService(ctx, option.WithHTTPClient(client))
}
