package universe

var lq45 = []string{
	"ACES", "ADRO", "AKRA", "AMRT", "ANTM", "ARTO", "ASII", "BBCA", "BBNI",
	"BBRI", "BBTN", "BMRI", "BRIS", "BRPT", "BUKA", "CPIN", "EMTK", "ESSA",
	"EXCL", "GGRM", "GOTO", "HRUM", "ICBP", "INCO", "INDF", "INKP", "INTP",
	"ISAT", "ITMG", "JSMR", "KLBF", "MAPI", "MBMA", "MDKA", "MEDC", "PGAS",
	"PGEO", "PTBA", "SIDO", "SMGR", "SRTG", "TLKM", "TOWR", "UNTR", "UNVR",
}

var idx30 = []string{
	"ADRO", "AKRA", "AMRT", "ANTM", "ARTO", "ASII", "BBCA", "BBNI", "BBRI",
	"BMRI", "BRIS", "BRPT", "CPIN", "EXCL", "GOTO", "ICBP", "INCO", "INDF",
	"INKP", "ITMG", "KLBF", "MDKA", "MEDC", "PGAS", "PTBA", "SMGR", "TLKM",
	"TOWR", "UNTR", "UNVR",
}

var idxBanks = []string{
	"BBCA", "BBRI", "BMRI", "BBNI", "BRIS", "BBTN", "ARTO", "BNGA", "NISP",
	"BDMN", "PNBN", "BJTM", "BJBR", "BTPS", "MEGA",
}

var usMegaCap = []string{
	"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA", "AVGO", "BRK-B",
	"JPM", "V", "UNH",
}

// Builtin returns the static universes shipped with the dashboard.
func Builtin() []Universe {
	return []Universe{
		{Name: "LQ45", Market: MarketIDX, Tickers: normalizeAll(MarketIDX, lq45)},
		{Name: "IDX30", Market: MarketIDX, Tickers: normalizeAll(MarketIDX, idx30)},
		{Name: "IDXBANKS", Market: MarketIDX, Tickers: normalizeAll(MarketIDX, idxBanks)},
		{Name: "US_MEGACAP", Market: MarketUS, Tickers: normalizeAll(MarketUS, usMegaCap)},
	}
}
