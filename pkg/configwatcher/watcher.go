package configwatcher

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"edulink_backend/internal/config"
	"edulink_backend/pkg/logger"
)

type ConfigReloader func(cfg interface{})

const debounceDelay = time.Second

// WatchConfig 监听配置文件变化并防抖重载。
// 编辑器保存往往触发多个事件（有的还是先改名再写入），
// 所以这里监听文件所在目录，并在事件静默一秒后才真正重载。
func WatchConfig(configPath string, cfg interface{}, reloader ConfigReloader) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal("Failed to create config watcher:", err)
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		log.Fatal("Failed to get absolute path:", err)
	}
	dir := filepath.Dir(absPath)
	target := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Fatal("Failed to watch config dir:", err)
	}

	var mu sync.Mutex
	var pending *time.Timer

	reload := func() {
		newCfg, err := config.LoadConfig(dir)
		if err != nil {
			logger.Log.Error("配置重载失败，沿用当前配置", zap.Error(err))
			return
		}
		logger.Log.Info("配置文件已变更，应用新配置")
		reloader(newCfg)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounceDelay, reload)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("config watcher error", zap.Error(err))
		}
	}
}
