package xconf

// Options 定义配置加载选项。
type Options struct {
	// Delim 配置键的分隔符，默认为 "."。
	Delim string

	// Tag 结构体标签名，用于 Unmarshal，默认为 "koanf"。
	Tag string

	// Defaults 在文件内容之前载入的默认值，键使用 Delim 分隔。
	Defaults map[string]any
}

// Option 定义配置选项函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Delim: ".",
		Tag:   "koanf",
	}
}

// WithDelim 设置配置键分隔符，空字符串被忽略。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名，空字符串被忽略。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithDefaults 设置默认值，例如 {"trap.max_blockers": 0}。
// 文件中出现的键覆盖默认值，Reload 时重新应用。
func WithDefaults(defaults map[string]any) Option {
	return func(o *Options) {
		if o.Defaults == nil {
			o.Defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			o.Defaults[k] = v
		}
	}
}
