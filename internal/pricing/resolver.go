package pricing

// EstimateCost resolves a USD cost estimate for one session's token
// counts. The static table wins over the dynamic catalog. A nil return
// means no price is known for the model; callers must treat nil as
// "uncovered", not as zero cost.
func EstimateCost(fullModel string, inputTokens, outputTokens, cacheReadTokens, cacheWriteTokens int64, catalog Catalog) *float64 {
	rate, ok := lookupStatic(fullModel)
	if !ok {
		rate, ok = lookupCatalog(fullModel, catalog)
	}
	if !ok {
		return nil
	}

	cost := (float64(inputTokens)*rate.InputPerMillion +
		float64(outputTokens)*rate.OutputPerMillion +
		float64(cacheReadTokens)*rate.CacheReadPerMillion +
		float64(cacheWriteTokens)*rate.CacheWritePerMillion) / 1e6
	return &cost
}

func lookupCatalog(fullModel string, catalog Catalog) (Rate, bool) {
	if len(catalog) == 0 {
		return Rate{}, false
	}
	if rate, ok := catalog[fullModel]; ok {
		return rate, true
	}
	rate, ok := catalog[shortModel(fullModel)]
	return rate, ok
}
