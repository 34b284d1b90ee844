package tovac

import "strconv"

// checkSecurity runs the cross-feature checks of §4.3 over every
// security{} block encountered during the walk, merged as the spec
// requires ("Across all security blocks, accumulate roles, auth configs,
// and protect rules"). This intentionally runs after the full tree walk
// so a protect rule parsed before an auth declaration still sees it.
func (a *Analyzer) checkSecurity() {
	roles := map[string][]Location{}
	var authTypes []string
	var authStorages []string
	rateLimited := false

	for _, leaf := range a.securityLeaves {
		switch leaf.Keyword {
		case "role":
			roles[leaf.Name] = append(roles[leaf.Name], leaf.Location())
		case "auth":
			authTypes = append(authTypes, leaf.Name)
			authStorages = append(authStorages, configString(leaf.Config, "storage", "default"))
			if leaf.Name != "jwt" && leaf.Name != "api_key" {
				a.warnf("W_UNKNOWN_AUTH_TYPE", leaf.Location(), "unknown auth type '%s'", leaf.Name)
			}
			a.checkSecretConfig(leaf)
		case "rate_limit":
			rateLimited = true
			a.checkRateLimitConfig(leaf)
		case "cors":
			a.checkCorsConfig(leaf)
		case "csrf":
			if !configBool(leaf.Config, "enabled", true) {
				a.warnf("W_CSRF_DISABLED", leaf.Location(), "CSRF protection is explicitly disabled")
			}
		case "sensitive":
			if hasConfigKey(leaf.Config, "hash") {
				a.warnf("W_HASH_NOT_ENFORCED", leaf.Location(), "sensitive field '%s' declares hash but it isn't enforced at write time", leaf.Name)
			}
		}
	}

	for name, locs := range roles {
		if len(locs) > 1 {
			a.warnf("W_DUPLICATE_ROLE", locs[len(locs)-1], "role '%s' is declared more than once in multiple security blocks", name)
		}
	}

	hasAuth := len(authTypes) > 0
	for _, leaf := range a.securityLeaves {
		if leaf.Keyword != "protect" {
			continue
		}
		if !hasAuth {
			a.warnf("W_PROTECT_WITHOUT_AUTH", leaf.Location(), "protect rule '%s' exists but no auth is configured", leaf.Name)
		}
		requireVal, hasRequire := configValue(leaf.Config, "require")
		if !hasRequire {
			a.warnf("W_PROTECT_NO_REQUIRE", leaf.Location(), "protect rule '%s' has no require clause and enforces nothing", leaf.Name)
			continue
		}
		if role, ok := requireVal.(*StringExpr); ok {
			if _, declared := roles[role.Value]; !declared {
				a.warnf("W_UNDEFINED_ROLE", leaf.Location(), "protect rule '%s' requires undefined role '%s'", leaf.Name, role.Value)
			}
		}
	}

	for _, storage := range authStorages {
		if storage != "cookie" {
			for _, leaf := range a.securityLeaves {
				if leaf.Keyword == "auth" && leaf.Name == "jwt" {
					a.warnf("W_LOCALSTORAGE_TOKEN", leaf.Location(), "jwt auth defaults to client-side storage instead of an HttpOnly cookie")
					break
				}
			}
			break
		}
	}

	if hasAuth {
		if !rateLimited {
			for _, leaf := range a.securityLeaves {
				if leaf.Keyword == "auth" {
					a.warnf("W_NO_AUTH_RATELIMIT", leaf.Location(), "auth is configured but no rate limiting exists anywhere")
					break
				}
			}
		}
	}
	if rateLimited {
		for _, leaf := range a.securityLeaves {
			if leaf.Keyword == "rate_limit" {
				a.warnf("W_INMEMORY_RATELIMIT", leaf.Location(), "rate limiting is backed by per-process in-memory state")
				break
			}
		}
	}
}

func (a *Analyzer) checkSecretConfig(leaf *SecurityLeaf) {
	for _, c := range leaf.Config {
		if c.Key != "secret" {
			continue
		}
		if call, ok := c.Value.(*CallExpr); ok {
			if callee, ok := call.Callee.(*IdentExpr); ok && callee.Name == "env" {
				continue
			}
		}
		if _, isStr := c.Value.(*StringExpr); isStr {
			a.warnf("W_HARDCODED_SECRET", leaf.Location(), "secret is a literal instead of env(\"...\")")
		}
	}
}

func (a *Analyzer) checkRateLimitConfig(leaf *SecurityLeaf) {
	max := configNumber(leaf.Config, "max")
	window := configNumber(leaf.Config, "window")
	if max != nil && *max <= 0 {
		a.warnf("W_INVALID_RATE_LIMIT", leaf.Location(), "rate limit max must be positive")
	}
	if window != nil && *window <= 0 {
		a.warnf("W_INVALID_RATE_LIMIT", leaf.Location(), "rate limit window must be positive")
	}
}

func (a *Analyzer) checkCorsConfig(leaf *SecurityLeaf) {
	for _, c := range leaf.Config {
		if c.Key != "origins" {
			continue
		}
		arr, ok := c.Value.(*ArrayExpr)
		if !ok {
			continue
		}
		for _, el := range arr.Elements {
			if s, ok := el.(*StringExpr); ok && s.Value == "*" {
				a.warnf("W_CORS_WILDCARD", leaf.Location(), "cors.origins contains a wildcard '*'")
			}
		}
	}
}

func configValue(cfg []ConfigEntry, key string) (Expr, bool) {
	for _, c := range cfg {
		if c.Key == key {
			return c.Value, true
		}
	}
	return nil, false
}

func hasConfigKey(cfg []ConfigEntry, key string) bool {
	_, ok := configValue(cfg, key)
	return ok
}

func configString(cfg []ConfigEntry, key, fallback string) string {
	v, ok := configValue(cfg, key)
	if !ok {
		return fallback
	}
	if s, ok := v.(*StringExpr); ok {
		return s.Value
	}
	return fallback
}

func configBool(cfg []ConfigEntry, key string, fallback bool) bool {
	v, ok := configValue(cfg, key)
	if !ok {
		return fallback
	}
	if b, ok := v.(*BoolExpr); ok {
		return b.Value
	}
	return fallback
}

func configNumber(cfg []ConfigEntry, key string) *float64 {
	v, ok := configValue(cfg, key)
	if !ok {
		return nil
	}
	n, ok := v.(*NumberExpr)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(n.Raw, 64)
	if err != nil {
		return nil
	}
	return &f
}
