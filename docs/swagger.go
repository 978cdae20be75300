package docs

// @title CoinTracker API
// @version 1.0
// @description 加密货币推文情绪采集与分析服务

// @contact.name API Support

// @host localhost:8080
// @BasePath /
// @schemes http https
