package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailfx/api"
	"mailfx/config"
	"mailfx/notify"
	"mailfx/pkg/logger"
	sig "mailfx/signal"
	"mailfx/signal/mail"
	"mailfx/trader"
	"mailfx/worker"
)

func main() {
	// .env 不存在时直接读环境变量
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogDir, cfg.Debug)
	log := logger.Module("main")
	defer logger.Log.Sync()

	telegram, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramAdminID, logger.Module("telegram"))
	if err != nil {
		log.Fatal("初始化Telegram失败", zap.Error(err))
	}

	broker := trader.NewTinkoff(cfg.TinkoffToken, cfg.TinkoffBaseURL)
	decoder := sig.NewDecoder()

	supervisor := worker.NewSupervisor(telegram, cfg.LivenessInterval, logger.Module("supervisor"))

	// 每个策略一个独立worker：独享邮箱连接、标的标识和通知句柄
	for _, sc := range cfg.Strategies {
		source := mail.NewSource(mail.Config{
			Server:   cfg.EmailServer,
			Address:  cfg.EmailAddress,
			Password: cfg.EmailPassword,
			Sender:   cfg.AlertSender,
		}, logger.Module("mail"))
		poller := sig.NewPoller(source, decoder)
		dispatcher := trader.NewDispatcher(broker, trader.OrderConfig{LotsPerUnit: cfg.LotsPerUnit})

		supervisor.Add(worker.NewStrategyWorker(
			sc, poller, dispatcher, broker, telegram,
			cfg.PollInterval, logger.Module("worker"),
		))
	}

	// 通知通道监听器作为辅助工作单元一并受监督
	supervisor.Add(worker.NewAuxWorker("telegram-listener", telegram.Listen))

	server := api.NewServer(supervisor, cfg.APIPort)

	// 外部信号走监督器的停止路径，而不是直接退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Info("收到退出信号", zap.String("signal", s.String()))
		supervisor.Stop()
	}()

	var g errgroup.Group
	g.Go(supervisor.Run)
	g.Go(func() error {
		return server.Run(supervisor.Done())
	})

	if err := g.Wait(); err != nil {
		log.Error("进程退出", zap.Error(err))
		logger.Log.Sync()
		os.Exit(1)
	}
	log.Info("进程正常退出")
}
