package analysis

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MorningPrompt instructs the model to digest a morning market report
// captured as carousel screenshots.
const MorningPrompt = `你是一位專業的財經分析助理。以下是一篇晨報貼文的連續截圖，請依照圖片順序整理出完整的晨報內容。

圖片清單：
{image_labels}

請輸出結構化的整理結果：
# 晨報重點
- 條列今日開盤前的重點消息
## 國際市場
- 美股、亞股與重要指數動態
## 個股與產業
- 貼文中提到的個股、產業與目標價，重要數字用 **粗體** 標示
## 注意事項
- 風險提示與待確認事項

只根據圖片內容整理，不要自行補充未出現的資訊。`

// AfterHoursPrompt instructs the model to digest an after-hours review post.
const AfterHoursPrompt = `你是一位專業的財經分析助理。以下是一篇盤後檢討貼文的連續截圖，請依照圖片順序整理出完整的盤後報告。

圖片清單：
{image_labels}

請輸出結構化的整理結果：
# 盤後重點
- 條列今日收盤後的重點
## 大盤回顧
- 指數漲跌、成交量與資金流向
## 個股表現
- 貼文中提到的個股表現與原因，重要數字用 **粗體** 標示
## 明日展望
- 貼文中對後市的看法

只根據圖片內容整理，不要自行補充未出現的資訊。`

// BuildPrompt substitutes the ordered image labels into a prompt template
func BuildPrompt(template string, imagePaths []string) string {
	labels := make([]string, 0, len(imagePaths))
	for i, path := range imagePaths {
		labels = append(labels, fmt.Sprintf("圖%d: %s", i+1, filepath.Base(path)))
	}
	return strings.ReplaceAll(template, "{image_labels}", strings.Join(labels, "\n"))
}
