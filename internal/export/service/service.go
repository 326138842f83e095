package service

import (
	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
	"go.uber.org/zap"
)

// Options 服务层依赖与参数
type Options struct {
	Profile   packing.PackagingProfile
	Tolerance float64
	Sessions  SessionStore
	Objects   ObjectStore
	Bucket    string
	Logger    *zap.Logger
}

// Services 外贸服务集合
type Services struct {
	Trade       *TradeService
	PackingList *PackingListService
	Editor      *EditorService
	Export      *ExportService
}

func NewServices(repos *repository.Repositories, opts Options) *Services {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pls := NewPackingListService(repos.Order, repos.Invoice, repos.PackingList, logger.Named("packing"))
	return &Services{
		Trade:       NewTradeService(repos.Order, repos.Invoice),
		PackingList: pls,
		Editor:      NewEditorService(pls, opts.Sessions, opts.Profile, opts.Tolerance, logger.Named("editor")),
		Export:      NewExportService(pls, opts.Objects, opts.Bucket, logger.Named("export")),
	}
}
