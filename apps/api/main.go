package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/rkabuya/evaldesk/apps/api/echo"
	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/evaluation"
	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
	"github.com/rkabuya/evaldesk/core/setting"
	"github.com/rkabuya/evaldesk/core/user"
	logsvc "github.com/rkabuya/evaldesk/services/logger"
	"github.com/rkabuya/evaldesk/storage/database"
	sqlxrepos "github.com/rkabuya/evaldesk/storage/database/sqlx"
	"github.com/rkabuya/evaldesk/storage/files"
)

func main() {
	rootDir, err := os.Getwd()
	errAndDie(err)
	conf := core.NewConfig(rootDir)

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))

	// set up validation
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	// set up DB & repos
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	sqlxDB := sqlx.NewDb(db, conf.Database.Engine)
	atomic := core.AtomicDB{DB: sqlxrepos.NewTxDB(sqlxDB)}

	hierRepo := sqlxrepos.NewHierarchyRepository(sqlxDB)
	partRepo := sqlxrepos.NewParticipantRepository(sqlxDB)
	usrRepo := sqlxrepos.NewUserRepository(sqlxDB)
	setRepo := sqlxrepos.NewSettingRepository(sqlxDB)

	// set up services
	fileStore, err := files.NewStore(conf.UploadsDir)
	errAndDie(err)

	hierSvc := hierarchy.NewService(atomic, hierRepo)
	partSvc := participant.NewService(atomic, partRepo, hierSvc, fileStore)
	usrSvc := user.NewService(usrRepo, validate)
	setSvc := setting.NewService(setRepo)
	engine := evaluation.NewEngine(hierRepo, partRepo)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		Shutdown:       shutdown,
		UserSvc:        usrSvc,
		HierarchySvc:   hierSvc,
		ParticipantSvc: partSvc,
		SettingSvc:     setSvc,
		Engine:         engine,
		Validate:       validate,
		Translator:     translator,
	})
	go app.Start()

	<-shutdown
	logger.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err = app.Stop(ctx); err != nil {
		logger.Fatal("graceful shutdown failed", err)
	}
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
