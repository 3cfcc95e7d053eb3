// Package xconf 提供最小化的配置加载器，基于 koanf 实现。
//
// 负责文件/字节数据的加载、默认值、反序列化和热重载，
// 不负责必选字段校验或环境变量覆盖。
//
//	cfg, err := xconf.New("xtrapctl.yaml", xconf.WithDefaults(map[string]any{
//		"hub.workers": 4,
//	}))
//	if err != nil {
//		return err
//	}
//	var c AppConfig
//	if err := cfg.Unmarshal("", &c); err != nil {
//		return err
//	}
//
// # 支持的格式
//
//   - YAML：.yaml, .yml
//   - JSON：.json
//
// # 并发安全
//
// Reload 串行执行，解析成功后原子替换 koanf 实例，失败时保留旧配置。
// Client() 返回的是快照，Reload 之后仍可使用但数据过期，
// 每次需要时重新调用 Client()。
//
// # 配置监视
//
// [Watch] 基于 fsnotify 监视配置文件所在目录，内置防抖，
// 阻塞运行直到 ctx 结束，适合作为 xrun 的一个服务。
package xconf
