package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/ucdata/internal/cache"
	"github.com/any-hub/ucdata/internal/config"
	"github.com/any-hub/ucdata/internal/fetch"
	"github.com/any-hub/ucdata/internal/logging"
	"github.com/any-hub/ucdata/internal/server"
	"github.com/any-hub/ucdata/internal/server/routes"
	"github.com/any-hub/ucdata/internal/ucd"
	"github.com/any-hub/ucdata/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	fetchName   string
	outPath     string
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

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage_path"] = cfg.Global.StoragePath
		fields["source_root"] = cfg.SourceRoot()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为 "配置 → 缓存 Store → Fetcher → ucd.Client"，
	// 同一进程内所有调用共享一个 Store，从而共享唯一的索引实例与写入临界区。
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	fetcher := fetch.NewFetcher(server.NewUpstreamClient(cfg), store, logger)
	files := ucd.NewClient(fetcher, cfg.SourceRoot())

	fields := logging.BaseFields("startup", opts.configPath)
	fields["storage_path"] = store.Root()
	fields["source_root"] = cfg.SourceRoot()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.fetchName != "" {
		if err := fetchToOutput(ctx, files, opts.fetchName, opts.outPath); err != nil {
			fmt.Fprintf(stdErr, "获取 %s 失败: %v\n", opts.fetchName, err)
			return 1
		}
		return 0
	}

	if err := startHTTPServer(cfg, store, files, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("ucdata", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		fetchName  string
		outPath    string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 UCDATA_CONFIG 覆盖，均为空时使用内置默认值）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.StringVar(&fetchName, "fetch", "", "获取指定 UCD 文件（例如 Script）后退出，而不是启动 HTTP 服务")
	fs.StringVar(&outPath, "out", "", "-fetch 的输出文件，默认写到 stdout")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("解析参数失败: 未知参数 %v", fs.Args())
	}
	if outPath != "" && fetchName == "" {
		return cliOptions{}, errors.New("解析参数失败: -out 需要与 -fetch 一起使用")
	}

	path := os.Getenv("UCDATA_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		fetchName:   fetchName,
		outPath:     outPath,
	}, nil
}

// fetchToOutput 通过缓存获取 name 对应的文件并写入 outPath（为空时写 stdout）。
func fetchToOutput(ctx context.Context, files *ucd.Client, name, outPath string) error {
	_, rc, err := files.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	if outPath == "" {
		_, err = io.Copy(stdOut, rc)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func startHTTPServer(cfg *config.Config, store *cache.Store, files *ucd.Client, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Files:      files,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, store, files)
	server.RegisterFallback(app)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
