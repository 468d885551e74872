package client

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAlreadyInitialized はデフォルトProviderの生成後にInitが呼ばれたことを示す。
var ErrAlreadyInitialized = errors.New("client: default provider already initialized")

var (
	defaultOnce     sync.Once
	defaultProvider *Provider
	defaultErr      error
	defaultConfig   = DefaultConfig()
	defaultMu       sync.Mutex
	defaultStarted  bool
)

// Init はデフォルトProviderの設定を登録する。Providerは最初のDefault呼び出しで生成される。
// Default呼び出し後に呼ぶとErrAlreadyInitializedを返す。
func Init(cfg Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStarted {
		return ErrAlreadyInitialized
	}
	defaultConfig = cfg
	return nil
}

// Default はプロセスで共有するProviderを返す。生成は一度だけ行う。
func Default() (*Provider, error) {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defaultStarted = true
		cfg := defaultConfig
		defaultMu.Unlock()

		defaultProvider, defaultErr = NewProvider(cfg)
		if defaultErr != nil {
			defaultErr = fmt.Errorf("failed to initialize default provider: %w", defaultErr)
		}
	})
	return defaultProvider, defaultErr
}
