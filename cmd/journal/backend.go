package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/quill/dynamostore"
	"github.com/jacentio/quill/journal"
	"github.com/jacentio/quill/program"
	"github.com/jacentio/quill/sqlitestore"
)

const dbFileName = "journal.db"

// open attaches the configured backend and builds the service and program.
func (a *app) open(ctx context.Context) error {
	backend, err := a.openBackend(ctx)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", a.v.GetString(cfgKeyBackend), err)
	}
	a.svc = journal.New(backend, a.journalConfig(), journal.WithLogger(a.logger))
	a.prog = program.New(a.svc, a.logger)
	return nil
}

func (a *app) openBackend(ctx context.Context) (journal.Backend, error) {
	switch name := a.v.GetString(cfgKeyBackend); name {
	case backendSQLite:
		dir, err := a.dataDir()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
		s, err := sqlitestore.Open(filepath.Join(dir, dbFileName))
		if err != nil {
			return nil, err
		}
		a.closer = s
		return s, nil

	case backendDynamoDB:
		client, err := a.dynamoClient(ctx)
		if err != nil {
			return nil, err
		}
		return dynamostore.New(client, a.dynamoConfig()), nil

	default:
		return nil, fmt.Errorf("%w: unknown backend %q (valid: %s, %s)", errUsage, name, backendSQLite, backendDynamoDB)
	}
}

func (a *app) dynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region := a.v.GetString(cfgKeyRegion); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile := a.v.GetString(cfgKeyProfile); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	endpoint := a.v.GetString(cfgKeyEndpoint)
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
