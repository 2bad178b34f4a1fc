package crawler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
	"github.com/foiahound/foiahound/internal/fetcher"
	"github.com/foiahound/foiahound/internal/llmutil"
)

// Crawler runs a multi-agent search over an agency website for its public
// records request portal. Several agents descend different paths from the
// seed page; after each round an LLM decision assigns every agent its next
// move, and the crawl ends when an agent lands on a page validated as the
// portal with high confidence.
type Crawler struct {
	cfg     config.CrawlerConfig
	fetcher schemas.ContentFetcher
	llm     schemas.LLMClient
	logger  *zap.Logger

	mu       sync.Mutex
	visited  map[string]bool
	frontier []schemas.ExtractedLink
	attempts []schemas.CrawlAttempt
	budget   int
	runID    string
}

// New builds a Crawler.
func New(cfg config.CrawlerConfig, f schemas.ContentFetcher, llm schemas.LLMClient, logger *zap.Logger) *Crawler {
	return &Crawler{
		cfg:     cfg,
		fetcher: f,
		llm:     llm,
		logger:  logger.Named("crawler"),
		visited: make(map[string]bool),
	}
}

// Run executes the crawl from the seed URL and returns the outcome. The
// result is populated even when no portal is found or an error cut the run
// short, so callers can always persist what happened.
func (c *Crawler) Run(ctx context.Context, seedURL string) (*schemas.CrawlResult, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	seedURL = fetcher.RepairURL(seedURL)
	c.runID = uuid.NewString()
	c.budget = c.cfg.MaxAttempts

	result := &schemas.CrawlResult{
		RunID:     c.runID,
		SeedURL:   seedURL,
		StartedAt: time.Now().UTC(),
	}

	c.logger.Info("Starting portal discovery crawl",
		zap.String("run_id", c.runID),
		zap.String("seed_url", seedURL),
		zap.Int("agents", c.cfg.Agents),
		zap.Int("max_attempts", c.cfg.MaxAttempts))

	agents, err := c.seedAgents(ctx, seedURL)
	if err != nil {
		c.finish(result)
		return result, err
	}

	winner, runErr := c.runRounds(ctx, agents)
	if winner != nil {
		result.Found = true
		result.PortalURL = winner.CurrentURL
		result.Validation = winner.Validation
		result.WinnerAgent = winner.AgentID
	}
	c.finish(result)

	if result.Found {
		c.logger.Info("Portal found",
			zap.String("run_id", c.runID),
			zap.String("portal_url", result.PortalURL),
			zap.Int("winner_agent", result.WinnerAgent),
			zap.Float64("confidence", result.Validation.Confidence))
	} else {
		c.logger.Warn("Crawl finished without locating a portal",
			zap.String("run_id", c.runID),
			zap.Int("pages_visited", len(result.VisitedURLs)))
	}
	return result, runErr
}

// seedAgents fetches the seed page, scores its links, and assigns each agent
// a distinct starting candidate. Agents beyond the number of viable links
// start exhausted.
func (c *Crawler) seedAgents(ctx context.Context, seedURL string) ([]*schemas.AgentState, error) {
	content, err := c.fetchPage(ctx, -1, seedURL, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching seed page: %w", err)
	}

	links, err := c.extractLinks(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("extracting seed links: %w", err)
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("no candidate links found on seed page %s", seedURL)
	}
	links = c.promisingLinks(links)
	if len(links) == 0 {
		return nil, fmt.Errorf("no link on seed page %s clears the promise floor %.2f", seedURL, c.cfg.MinPromise)
	}

	agents := make([]*schemas.AgentState, c.cfg.Agents)
	for i := range agents {
		agents[i] = &schemas.AgentState{AgentID: i, Exhausted: true}
	}

	c.mu.Lock()
	for i := 0; i < len(agents) && i < len(links); i++ {
		agents[i].CurrentURL = links[i].URL
		agents[i].Depth = 1
		agents[i].Path = []string{seedURL, links[i].URL}
		agents[i].Exhausted = false
	}
	// Remaining candidates form the shared frontier for explore_new.
	if len(links) > len(agents) {
		c.frontier = append(c.frontier, links[len(agents):]...)
	}
	c.mu.Unlock()

	return agents, nil
}

// runRounds drives the agents until a winner emerges, the attempt budget
// runs out, or every agent is exhausted.
func (c *Crawler) runRounds(ctx context.Context, agents []*schemas.AgentState) (*schemas.AgentState, error) {
	for round := 1; ; round++ {
		active := activeAgents(agents)
		if len(active) == 0 {
			c.logger.Info("All agents exhausted", zap.Int("round", round))
			return nil, nil
		}
		if c.remainingBudget() <= 0 {
			c.logger.Info("Attempt budget exhausted", zap.Int("round", round))
			return nil, nil
		}

		c.logger.Debug("Crawl round starting",
			zap.Int("round", round),
			zap.Int("active_agents", len(active)),
			zap.Int("remaining_attempts", c.remainingBudget()))

		g, gctx := errgroup.WithContext(ctx)
		for _, ag := range active {
			if c.remainingBudget() <= 0 {
				break
			}
			c.consumeBudget()
			g.Go(func() error {
				return c.stepAgent(gctx, ag)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		// Forced terminate: an agent's validated page clears the bar without
		// consulting the orchestration model.
		for _, ag := range active {
			if v := ag.Validation; v != nil && v.IsTarget && v.Confidence >= c.cfg.TerminateConfidence {
				return ag, nil
			}
		}

		decision := c.decide(ctx, agents)
		if winner := c.applyDecision(decision, agents); winner != nil {
			return winner, nil
		}
	}
}

// stepAgent performs one page visit for an agent: fetch, validate, extract.
func (c *Crawler) stepAgent(ctx context.Context, ag *schemas.AgentState) error {
	content, err := c.fetchPage(ctx, ag.AgentID, ag.CurrentURL, ag.Depth)
	if err != nil {
		c.logger.Warn("Agent fetch failed",
			zap.Int("agent_id", ag.AgentID),
			zap.String("url", ag.CurrentURL),
			zap.Error(err))
		ag.Validation = nil
		ag.Links = nil
		return nil // A dead page exhausts the path, not the crawl.
	}

	truncated := strings.Contains(content, fetcher.TruncationNotice)

	validation, err := c.validatePage(ctx, content, truncated)
	if err != nil {
		return fmt.Errorf("agent %d validating %s: %w", ag.AgentID, ag.CurrentURL, err)
	}
	ag.Validation = validation
	c.recordValidation(ag)

	links, err := c.extractLinks(ctx, content)
	if err != nil {
		c.logger.Warn("Link extraction failed",
			zap.Int("agent_id", ag.AgentID),
			zap.String("url", ag.CurrentURL),
			zap.Error(err))
		links = nil
	}
	ag.Links = c.filterVisited(links)

	c.logger.Debug("Agent step complete",
		zap.Int("agent_id", ag.AgentID),
		zap.String("url", ag.CurrentURL),
		zap.Int("depth", ag.Depth),
		zap.Bool("is_target", validation.IsTarget),
		zap.Float64("confidence", validation.Confidence),
		zap.Int("candidate_links", len(ag.Links)))
	return nil
}

// fetchPage retrieves a page, marks it visited, and records the attempt.
func (c *Crawler) fetchPage(ctx context.Context, agentID int, url string, depth int) (string, error) {
	content, err := c.fetcher.Fetch(ctx, url)

	c.mu.Lock()
	c.visited[url] = true
	attempt := schemas.CrawlAttempt{
		RunID:     c.runID,
		AgentID:   agentID,
		Attempt:   len(c.attempts) + 1,
		URL:       url,
		Depth:     depth,
		FetchedAt: time.Now().UTC(),
	}
	if err != nil {
		attempt.Err = err.Error()
	}
	c.attempts = append(c.attempts, attempt)
	c.mu.Unlock()

	return content, err
}

// recordValidation attaches the agent's verdict to its latest attempt.
func (c *Crawler) recordValidation(ag *schemas.AgentState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.attempts) - 1; i >= 0; i-- {
		if c.attempts[i].URL == ag.CurrentURL && c.attempts[i].AgentID == ag.AgentID {
			c.attempts[i].Validation = ag.Validation
			return
		}
	}
}

// extractLinks asks the fast model to score the page's outbound links.
func (c *Crawler) extractLinks(ctx context.Context, content string) ([]schemas.ExtractedLink, error) {
	resp, err := c.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(linkExtractionSystemPrompt, c.cfg.MaxLinksPerPage),
		UserPrompt:   content,
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	})
	if err != nil {
		return nil, err
	}

	links, err := llmutil.ParseJSONResponse[[]schemas.ExtractedLink](resp)
	if err != nil {
		return nil, err
	}

	out := make([]schemas.ExtractedLink, 0, len(*links))
	for _, l := range *links {
		l.URL = fetcher.RepairURL(l.URL)
		if l.URL == "" {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DepthValue > out[j].DepthValue })
	if len(out) > c.cfg.MaxLinksPerPage && c.cfg.MaxLinksPerPage > 0 {
		out = out[:c.cfg.MaxLinksPerPage]
	}
	return out, nil
}

// validatePage asks the powerful model whether the page is the portal.
// Truncated pages that score just under the bar get boosted: the cut
// content usually holds the submission controls the model is missing.
func (c *Crawler) validatePage(ctx context.Context, content string, truncated bool) (*schemas.ValidationResult, error) {
	resp, err := c.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: pageValidationSystemPrompt,
		UserPrompt:   content,
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	})
	if err != nil {
		return nil, err
	}

	validation, err := llmutil.ParseJSONResponse[schemas.ValidationResult](resp)
	if err != nil {
		return nil, err
	}

	if truncated && validation.IsTarget &&
		validation.Confidence >= c.cfg.TruncationBoostFloor &&
		validation.Confidence <= c.cfg.TruncationBoostCeil {
		c.logger.Debug("Boosting confidence for truncated page",
			zap.Float64("original", validation.Confidence),
			zap.Float64("boosted", c.cfg.TerminateConfidence))
		validation.Confidence = c.cfg.TerminateConfidence
	}
	return validation, nil
}

// decide asks the orchestration model for each agent's next action. A parse
// or API failure falls back to a local heuristic so one bad response cannot
// stall the crawl.
func (c *Crawler) decide(ctx context.Context, agents []*schemas.AgentState) *schemas.CrawlDecision {
	statesJSON, err := json.MarshalIndent(agents, "", "  ")
	if err != nil {
		return c.fallbackDecision(agents)
	}

	resp, err := c.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: crawlDecisionSystemPrompt,
		UserPrompt:   fmt.Sprintf("Maximum depth: %d\n\nAgent states:\n%s", c.cfg.MaxDepth, statesJSON),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true},
	})
	if err != nil {
		c.logger.Warn("Decision request failed, using fallback heuristic", zap.Error(err))
		return c.fallbackDecision(agents)
	}

	decision, err := llmutil.ParseJSONResponse[schemas.CrawlDecision](resp)
	if err != nil {
		c.logger.Warn("Decision response unparseable, using fallback heuristic", zap.Error(err))
		return c.fallbackDecision(agents)
	}

	c.logger.Debug("Crawl decision received",
		zap.Int("winner_agent_id", decision.WinnerAgentID),
		zap.String("reason", decision.Reason))
	return decision
}

// fallbackDecision keeps agents moving without the orchestration model:
// go deeper when a page offered links, restart otherwise.
func (c *Crawler) fallbackDecision(agents []*schemas.AgentState) *schemas.CrawlDecision {
	decision := &schemas.CrawlDecision{
		Actions:       make(map[int]schemas.CrawlAction),
		WinnerAgentID: -1,
		Reason:        "local heuristic",
	}
	for _, ag := range agents {
		if ag.Exhausted {
			continue
		}
		if len(ag.Links) > 0 && ag.Depth < c.cfg.MaxDepth {
			decision.Actions[ag.AgentID] = schemas.ActionExploreDeeper
		} else {
			decision.Actions[ag.AgentID] = schemas.ActionExploreNew
		}
	}
	return decision
}

// applyDecision moves every agent per the decision and returns the winner
// when the decision terminates the crawl on a validated page.
func (c *Crawler) applyDecision(decision *schemas.CrawlDecision, agents []*schemas.AgentState) *schemas.AgentState {
	if decision.WinnerAgentID >= 0 && decision.WinnerAgentID < len(agents) {
		winner := agents[decision.WinnerAgentID]
		if winner.Validation != nil && winner.Validation.IsTarget {
			return winner
		}
		c.logger.Warn("Decision named a winner whose page failed validation, continuing",
			zap.Int("agent_id", decision.WinnerAgentID))
	}

	for _, ag := range agents {
		if ag.Exhausted {
			continue
		}
		action, ok := decision.Actions[ag.AgentID]
		if !ok {
			action = schemas.ActionExploreNew
		}

		switch action {
		case schemas.ActionTerminate:
			c.bankLinks(ag)
			ag.Exhausted = true
		case schemas.ActionExploreDeeper:
			if !c.moveDeeper(ag) {
				c.moveToNewCandidate(ag)
			}
		default:
			c.moveToNewCandidate(ag)
		}
	}
	return nil
}

// moveDeeper advances the agent to its best unvisited link, if depth allows.
func (c *Crawler) moveDeeper(ag *schemas.AgentState) bool {
	if ag.Depth >= c.cfg.MaxDepth {
		return false
	}
	next := c.takeBestLink(ag.Links)
	if next == nil {
		return false
	}
	c.bankLinks(ag)
	ag.CurrentURL = next.URL
	ag.Depth++
	ag.Path = append(ag.Path, next.URL)
	ag.Validation = nil
	ag.Links = nil
	return true
}

// moveToNewCandidate restarts the agent from the best link in the shared
// frontier. Links under the promise floor are never handed out; with the
// frontier empty or only low-promise links left, the agent is done.
func (c *Crawler) moveToNewCandidate(ag *schemas.AgentState) {
	c.bankLinks(ag)

	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.frontier, func(i, j int) bool {
		return c.frontier[i].DepthValue > c.frontier[j].DepthValue
	})
	for len(c.frontier) > 0 {
		next := c.frontier[0]
		// Sorted by promise, so the first link under the floor means the
		// rest are under it too.
		if next.DepthValue < c.cfg.MinPromise {
			break
		}
		c.frontier = c.frontier[1:]
		if c.visited[next.URL] {
			continue
		}
		ag.CurrentURL = next.URL
		ag.Depth = 1
		ag.Path = []string{next.URL}
		ag.Validation = nil
		ag.Links = nil
		return
	}

	c.logger.Debug("No frontier link clears the promise floor, agent done",
		zap.Int("agent_id", ag.AgentID))
	ag.Exhausted = true
}

// bankLinks moves the agent's unused candidates into the shared frontier.
func (c *Crawler) bankLinks(ag *schemas.AgentState) {
	if len(ag.Links) == 0 {
		return
	}
	c.mu.Lock()
	for _, l := range ag.Links {
		if !c.visited[l.URL] {
			c.frontier = append(c.frontier, l)
		}
	}
	c.mu.Unlock()
	ag.Links = nil
}

// takeBestLink pops the highest-scored unvisited link from the slice.
// Links under the promise floor do not qualify.
func (c *Crawler) takeBestLink(links []schemas.ExtractedLink) *schemas.ExtractedLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	best := -1
	for i, l := range links {
		if c.visited[l.URL] || l.DepthValue < c.cfg.MinPromise {
			continue
		}
		if best == -1 || l.DepthValue > links[best].DepthValue {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	return &links[best]
}

// promisingLinks drops links scored under the promise floor. The input is
// sorted by score, so a single cut point suffices.
func (c *Crawler) promisingLinks(links []schemas.ExtractedLink) []schemas.ExtractedLink {
	for i, l := range links {
		if l.DepthValue < c.cfg.MinPromise {
			return links[:i]
		}
	}
	return links
}

// filterVisited drops links the crawl has already fetched.
func (c *Crawler) filterVisited(links []schemas.ExtractedLink) []schemas.ExtractedLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := links[:0]
	for _, l := range links {
		if !c.visited[l.URL] {
			out = append(out, l)
		}
	}
	return out
}

func (c *Crawler) remainingBudget() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

func (c *Crawler) consumeBudget() {
	c.mu.Lock()
	c.budget--
	c.mu.Unlock()
}

// finish stamps the result with the run's bookkeeping.
func (c *Crawler) finish(result *schemas.CrawlResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result.FinishedAt = time.Now().UTC()
	result.Attempts = c.attempts
	result.VisitedURLs = make([]string, 0, len(c.visited))
	for url := range c.visited {
		result.VisitedURLs = append(result.VisitedURLs, url)
	}
	sort.Strings(result.VisitedURLs)
}

func activeAgents(agents []*schemas.AgentState) []*schemas.AgentState {
	var active []*schemas.AgentState
	for _, ag := range agents {
		if !ag.Exhausted {
			active = append(active, ag)
		}
	}
	return active
}
