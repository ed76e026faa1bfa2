//go:build wireinject
// +build wireinject

package di

import (
	"FinFusion/pkg/config"
	"FinFusion/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil
}

// InitializePipeline wires the analysis stack for one-shot CLI runs.
func InitializePipeline(cfg *config.Config) (*Pipeline, func(), error) {
	wire.Build(PipelineSet, ProvidePipeline)
	return nil, nil, nil
}
