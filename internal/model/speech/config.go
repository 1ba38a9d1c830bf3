package speech

import "time"

// 语音服务提供方标识
const (
	ProviderMock       = "mock"
	ProviderAzure      = "azure"
	ProviderVolcengine = "volcengine"
)

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	TTSProvider string `json:"ttsProvider"`
	STTProvider string `json:"sttProvider"`

	// Azure 配置
	AzureKey         string `json:"-"`
	AzureRegion      string `json:"azureRegion"`
	AzureVoice       string `json:"azureVoice"`
	AzureRate        string `json:"azureRate"`
	AzurePitch       string `json:"azurePitch"`
	AzureSTTLanguage string `json:"azureSttLanguage"`
	// AzureEndpoint 覆盖默认的 region 域名，测试时指向本地服务
	AzureEndpoint string `json:"-"`

	// Volcengine 配置
	VolcAppID       string  `json:"volcAppId"`
	VolcAccessToken string  `json:"-"`
	VolcVoice       string  `json:"volcVoice"`
	VolcSpeed       float32 `json:"volcSpeed"`
	VolcLanguage    string  `json:"volcLanguage"`
	// VolcEndpoint 覆盖默认的 websocket 地址
	VolcTTSEndpoint string `json:"-"`
	VolcASREndpoint string `json:"-"`

	// 通用配置
	Timeout time.Duration `json:"timeout"`
}

// Enabled 表示 provider 是否具备可用凭证。mock 永远不算启用。
func (c *SpeechConfig) Enabled(provider string) bool {
	switch provider {
	case ProviderAzure:
		return c.AzureKey != "" && c.AzureRegion != ""
	case ProviderVolcengine:
		return c.VolcAppID != "" && c.VolcAccessToken != ""
	default:
		return false
	}
}
