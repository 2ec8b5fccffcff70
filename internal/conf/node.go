package conf

// Node is the read side of a key/value configuration tree. Keys are
// dot-separated paths such as "player.channel.0.pan". *viper.Viper
// satisfies it.
type Node interface {
	IsSet(key string) bool
	GetBool(key string) bool
	GetInt(key string) int
	GetFloat64(key string) float64
	GetString(key string) string
}

// Writer is the write side of a key/value configuration tree.
// *viper.Viper satisfies it.
type Writer interface {
	Set(key string, value any)
}
