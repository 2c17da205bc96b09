package engage

import "github.com/sells-group/gemsieve/internal/model"

// strategyFor routes each gem type to its engagement strategy.
var strategyFor = map[model.GemType]string{
	model.GemWeakMarketingLead:   model.StrategyAudit,
	model.GemProcurementSignal:   model.StrategyAudit,
	model.GemDormantWarmThread:   model.StrategyRevival,
	model.GemUnansweredAsk:       model.StrategyRevival,
	model.GemPartnerProgram:      model.StrategyPartner,
	model.GemRenewalLeverage:     model.StrategyRenewal,
	model.GemIndustryIntel:       model.StrategyIndustry,
	model.GemCoMarketing:         model.StrategyMirror,
	model.GemVendorUpsell:        model.StrategyMirror,
	model.GemDistributionChannel: model.StrategyDistribution,
}

// channelFor names the outreach channel per strategy, stored on the draft
// so the user knows where to send it.
var channelFor = map[string]string{
	model.StrategyAudit:        "email reply or cold email",
	model.StrategyIndustry:     "content publication + tag",
	model.StrategyRevival:      "reply to original thread",
	model.StrategyPartner:      "partner program URL or vendor contact",
	model.StrategyRenewal:      "email to account manager",
	model.StrategyMirror:       "email reply with value exchange",
	model.StrategyDistribution: "pitch email to editor/host",
}

// StrategyFor returns the strategy for a gem type, falling back to audit
// for anything unmapped.
func StrategyFor(gt model.GemType) string {
	if s, ok := strategyFor[gt]; ok {
		return s
	}
	return model.StrategyAudit
}

// ChannelFor returns the outreach channel for a strategy.
func ChannelFor(strategy string) string {
	if c, ok := channelFor[strategy]; ok {
		return c
	}
	return "email"
}
