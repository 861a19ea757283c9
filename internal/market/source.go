package market

import "context"

// Source 统一合成数据、文件与交易所等 K 线来源。
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawCandle, error)
}
