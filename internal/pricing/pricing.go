package pricing

// modelPrice 模型价格,按每百万 token 计价(美元)
type modelPrice struct {
	Input  float64
	Output float64
}

// prices 静态价格表,模型 ID 与 OpenRouter 保持一致
var prices = map[string]modelPrice{
	"openai/gpt-5":               {Input: 1.25, Output: 10.00},
	"openai/gpt-5-mini":          {Input: 0.25, Output: 2.00},
	"openai/gpt-5-nano":          {Input: 0.05, Output: 0.40},
	"openai/gpt-4o":              {Input: 2.50, Output: 10.00},
	"openai/gpt-4o-mini":         {Input: 0.15, Output: 0.60},
	"openai/gpt-4.1-mini":        {Input: 0.40, Output: 1.60},
	"anthropic/claude-sonnet-4":  {Input: 3.00, Output: 15.00},
	"anthropic/claude-3.5-haiku": {Input: 0.80, Output: 4.00},
	"google/gemini-2.5-pro":      {Input: 1.25, Output: 10.00},
	"google/gemini-2.5-flash":    {Input: 0.30, Output: 2.50},
	"deepseek/deepseek-chat":     {Input: 0.27, Output: 1.10},
}

// defaultPrice 未收录模型的兜底价格
var defaultPrice = modelPrice{Input: 1.00, Output: 3.00}

const tokensPerMillion = 1_000_000

// Rates 返回模型的单 token 价格(输入、输出)
// 价格表按每百万 token 维护,这里统一归一化为单 token
func Rates(model string) (inputRate, outputRate float64) {
	price, ok := prices[model]
	if !ok {
		price = defaultPrice
	}
	return price.Input / tokensPerMillion, price.Output / tokensPerMillion
}

// Cost 计算一次调用的成本
func Cost(model string, promptTokens, completionTokens int) float64 {
	inputRate, outputRate := Rates(model)
	return float64(promptTokens)*inputRate + float64(completionTokens)*outputRate
}
