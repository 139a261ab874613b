package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/wized2/offline-agent/internal/agent"
	"github.com/wized2/offline-agent/internal/cachestore"
	"github.com/wized2/offline-agent/internal/config"
	"github.com/wized2/offline-agent/internal/control"
	"github.com/wized2/offline-agent/internal/health"
	"github.com/wized2/offline-agent/internal/lifecycle"
	"github.com/wized2/offline-agent/internal/logging"
	"github.com/wized2/offline-agent/internal/routine"
	"github.com/wized2/offline-agent/internal/server"
	"github.com/wized2/offline-agent/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["origin"] = cfg.Origin
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循“配置 → 层存储 → 生命周期(安装/激活) → 健康调度 → Fiber server”
	// 顺序，保证所有请求共享统一的层存储与日志实例。
	store, err := cachestore.NewStore(cfg.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}
	defer store.Close()

	origin, err := cfg.OriginURL()
	if err != nil {
		fmt.Fprintf(stdErr, "解析 Origin 失败: %v\n", err)
		return 1
	}

	httpClient := server.NewUpstreamClient(cfg)
	runner := routine.New(logger)

	agentHandler, err := agent.New(agent.Options{
		Client:          httpClient,
		Logger:          logger,
		Store:           store,
		Runner:          runner,
		Origin:          origin,
		RevalidateDelay: cfg.RevalidateDelay.DurationValue(),
	})
	if err != nil {
		fmt.Fprintf(stdErr, "构建请求策略失败: %v\n", err)
		return 1
	}

	manager := lifecycle.New(httpClient, logger, store, origin)
	manager.Install(context.Background())
	manager.Activate()

	monitor := health.New(logger, store)
	monitor.Run()
	scheduler, err := health.Schedule(cfg.HealthSchedule, monitor, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "健康检查调度失败: %v\n", err)
		return 1
	}
	defer scheduler.Stop()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["origin"] = cfg.Origin
	fields["listen_port"] = cfg.ListenPort
	fields["state"] = string(manager.State())
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, agentHandler, store, monitor, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("offline-agent", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 OFFLINE_AGENT_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("OFFLINE_AGENT_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, agentHandler server.AgentHandler, store cachestore.Store, monitor *health.Monitor, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Agent:  agentHandler,
	})
	if err != nil {
		return err
	}
	if err := control.RegisterRoutes(app, control.Options{
		Logger:  logger,
		Store:   store,
		Monitor: monitor,
	}); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.ListenPort,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", cfg.ListenPort))
}
