package prompt

import (
	"fmt"
	"strings"

	"github.com/zorojean/lifekline/internal/dayun"
	"github.com/zorojean/lifekline/models"
)

// SystemInstruction fixes the role and the JSON shape of the answer
const SystemInstruction = `你是一位精通子平八字与大运流年推演的命理分析师，同时负责把分析结果整理成“人生K线”数据。
你必须只输出一个 JSON 对象，不要输出 Markdown 代码块，不要输出任何解释文字。

JSON 结构如下：
{
  "bazi": ["年柱", "月柱", "日柱", "时柱"],
  "chartPoints": [
    {
      "age": 1,
      "year": 1990,
      "daYun": "童限",
      "ganZhi": "庚午",
      "open": 50,
      "close": 55,
      "high": 60,
      "low": 45,
      "score": 55,
      "reason": "该年运势的简要说明（20字以内）"
    }
  ],
  "summary": "命理总评", "summaryScore": 8,
  "personality": "性格分析", "personalityScore": 8,
  "industry": "事业与行业建议", "industryScore": 7,
  "fengShui": "风水与环境建议", "fengShuiScore": 7,
  "wealth": "财富分析", "wealthScore": 7,
  "marriage": "婚姻感情", "marriageScore": 6,
  "health": "健康提示", "healthScore": 6,
  "family": "六亲与家庭", "familyScore": 7,
  "crypto": "币圈交易运势", "cryptoScore": 6,
  "cryptoYear": "最佳入场年份，例如 2027年 (丁未)",
  "cryptoStyle": "现货定投 / 波段操作 / 合约短线 之一"
}

规则：
1. chartPoints 必须恰好 100 项，age 从 1 到 100 连续递增。
2. open/close/high/low/score 取值 0-100，high 不低于 open 与 close 中较大者，low 不高于其中较小者。
3. 每一年的 open 等于上一年的 close。
4. 所有 *Score 字段为 0-10 的整数。`

// Build assembles the generation request for one subject. The decade bands are
// spelled out as literal ages so the generator does not have to derive them.
func Build(subject models.Subject, spec dayun.Spec, model string) models.GenerationRequest {
	return models.GenerationRequest{
		Model:  model,
		System: SystemInstruction,
		User:   UserPrompt(subject, spec),
	}
}

// UserPrompt renders the subject facts, the decade cycle and the per-field rules
func UserPrompt(subject models.Subject, spec dayun.Spec) string {
	var sb strings.Builder
	bands := spec.Bands()

	sb.WriteString("请根据以下八字信息，生成 1-100 岁的人生K线数据与命理分析。\n\n")

	sb.WriteString("【基本信息】\n")
	sb.WriteString(fmt.Sprintf("姓名：%s\n", subject.DisplayName()))
	sb.WriteString(fmt.Sprintf("性别：%s\n", subject.Gender.Label()))
	sb.WriteString(fmt.Sprintf("出生年份：%d年（阳历）\n", subject.BirthYear))

	sb.WriteString("\n【八字四柱】\n")
	sb.WriteString(fmt.Sprintf("年柱：%s\n", subject.Pillars.Year))
	sb.WriteString(fmt.Sprintf("月柱：%s\n", subject.Pillars.Month))
	sb.WriteString(fmt.Sprintf("日柱：%s\n", subject.Pillars.Day))
	sb.WriteString(fmt.Sprintf("时柱：%s\n", subject.Pillars.Hour))

	sb.WriteString("\n【大运信息】\n")
	sb.WriteString(fmt.Sprintf("起运年龄：%d岁（虚岁）\n", spec.StartAge))
	sb.WriteString(fmt.Sprintf("第一步大运：%s\n", spec.First))
	sb.WriteString(fmt.Sprintf("排序方向：%s（%s）\n", spec.Direction.Label(), directionRule(subject.Gender, spec.Direction)))

	sb.WriteString("\n【大运分段（必须严格遵守）】\n")
	for _, b := range bands {
		if b.PreCycle {
			sb.WriteString(fmt.Sprintf("%d-%d岁：daYun 填 \"%s\"，尚未起运\n", b.Lo, b.Hi, models.ChildhoodLimit))
			continue
		}
		sb.WriteString(fmt.Sprintf("%d-%d岁：第%d步大运 %s\n", b.Lo, b.Hi, b.Decade, b.Pillar))
	}

	sb.WriteString("\n【字段规则】\n")
	sb.WriteString("1. daYun 是大运干支，每 10 年才变化一次，只能取上面大运分段中的值")
	if spec.StartAge > 1 {
		sb.WriteString(fmt.Sprintf("；%d 岁之前一律填 \"%s\"", spec.StartAge, models.ChildhoodLimit))
	}
	sb.WriteString("。\n")
	sb.WriteString("2. ganZhi 是流年干支，每一年都变化，等于该年份（year）本身的年干支，与 daYun 无关，不要混淆。\n")
	sb.WriteString(fmt.Sprintf("3. year = %d + age - 1，age 按虚岁计算，出生当年为 1 岁。\n", subject.BirthYear))
	sb.WriteString(fmt.Sprintf("4. 大运按六十甲子%s，每步大运取上一步大运在六十甲子中的%s。\n",
		spec.Direction.Label(), neighbour(spec.Direction)))
	sb.WriteString("5. bazi 字段原样返回上面的四柱。\n")
	sb.WriteString("6. reason 结合大运与流年对命局的作用，简要说明吉凶。\n")

	return sb.String()
}

func directionRule(g models.Gender, d models.Direction) string {
	yang := (g == models.GenderMale) == (d == models.DirectionForward)
	stem := "阴"
	if yang {
		stem = "阳"
	}
	if g == models.GenderMale {
		return fmt.Sprintf("%s年生男命", stem)
	}
	return fmt.Sprintf("%s年生女命", stem)
}

func neighbour(d models.Direction) string {
	if d == models.DirectionBackward {
		return "前一位"
	}
	return "下一位"
}
