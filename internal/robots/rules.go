// Package robots decides whether a product page may be fetched, following
// the host's robots.txt.
package robots

import (
	"bufio"
	"strconv"
	"strings"
	"time"
)

// Group is one User-agent block.
type Group struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay time.Duration
}

// Rules is a parsed robots.txt. The zero value allows everything.
type Rules struct {
	Groups []Group
}

var disallowAll = Rules{Groups: []Group{{Agents: []string{"*"}, Disallow: []string{"/"}}}}

// Parse reads robots.txt text. Unknown directives are ignored.
func Parse(text string) Rules {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var (
		groups  []Group
		cur     Group
		inRules bool
	)
	flush := func() {
		if len(cur.Agents) > 0 {
			groups = append(groups, cur)
		}
		cur = Group{}
		inRules = false
	}
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent", "useragent":
			if inRules {
				flush()
			}
			cur.Agents = append(cur.Agents, strings.ToLower(val))
		case "allow":
			cur.Allow = append(cur.Allow, val)
			inRules = true
		case "disallow":
			cur.Disallow = append(cur.Disallow, val)
			inRules = true
		case "crawl-delay", "crawldelay":
			if secs, err := strconv.ParseFloat(val, 64); err == nil && secs > 0 {
				cur.CrawlDelay = time.Duration(secs * float64(time.Second))
			}
			inRules = true
		}
	}
	flush()
	return Rules{Groups: groups}
}

// group picks the block with the longest agent token contained in ua;
// "*" matches anything but loses to any named agent.
func (r Rules) group(ua string) (Group, bool) {
	ua = strings.ToLower(ua)
	best, score := -1, -1
	for i, g := range r.Groups {
		for _, a := range g.Agents {
			s := -1
			switch {
			case a == "*":
				s = 0
			case a != "" && strings.Contains(ua, a):
				s = len(a)
			}
			if s > score {
				best, score = i, s
			}
		}
	}
	if best < 0 {
		return Group{}, false
	}
	return r.Groups[best], true
}

// Allowed applies longest-match semantics: the matching directive with the
// most literal characters wins, and Allow wins ties. No match allows.
func (r Rules) Allowed(ua, path string) bool {
	g, ok := r.group(ua)
	if !ok {
		return true
	}
	if path == "" {
		path = "/"
	}
	best, allow := -1, true
	consider := func(patterns []string, isAllow bool) {
		for _, p := range patterns {
			if p == "" || !match(p, path) {
				continue
			}
			s := len(strings.ReplaceAll(strings.TrimSuffix(p, "$"), "*", ""))
			if s > best || (s == best && isAllow) {
				best, allow = s, isAllow
			}
		}
	}
	consider(g.Disallow, false)
	consider(g.Allow, true)
	return allow
}

// CrawlDelay returns the delay requested for ua, or zero.
func (r Rules) CrawlDelay(ua string) time.Duration {
	g, _ := r.group(ua)
	return g.CrawlDelay
}

// match reports whether a robots pattern matches path from its start.
// '*' matches any run of characters and a trailing '$' anchors the end.
func match(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	rest := path[len(parts[0]):]
	if len(parts) == 1 {
		return !anchored || rest == ""
	}
	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, mid)
		if i < 0 {
			return false
		}
		rest = rest[i+len(mid):]
	}
	last := parts[len(parts)-1]
	if anchored {
		return strings.HasSuffix(rest, last)
	}
	return strings.Contains(rest, last)
}
