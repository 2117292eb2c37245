package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/kailas-cloud/mmdex/internal/domain/chat"
	"github.com/kailas-cloud/mmdex/internal/domain/modality"
	"github.com/kailas-cloud/mmdex/internal/domain/search/filter"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	conversationuc "github.com/kailas-cloud/mmdex/internal/usecase/conversation"
	retrievaluc "github.com/kailas-cloud/mmdex/internal/usecase/retrieval"
)

func normalizeAction(_ context.Context, cmd *cli.Command) error {
	m, err := modality.Parse(cmd.String("modality"))
	if err != nil {
		return err
	}
	settings, err := parseSettings(cmd.String("model"), cmd.StringSlice("set"))
	if err != nil {
		return err
	}
	params := describeRequest(request.Build(m, settings))

	w := writer(cmd)
	if cmd.Root().String("output") == "json" {
		obj := make(map[string]any, len(params))
		for _, p := range params {
			obj[p.key] = p.value
		}
		return writeJSON(w, obj)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range params {
		fmt.Fprintf(tw, "%s\t%v\n", p.key, p.value)
	}
	return tw.Flush()
}

type param struct {
	key   string
	value any
}

func describeRequest(req request.Request) []param {
	params := []param{{"model_id", req.ModelID()}, {"modality", req.Modality()}}
	if v, ok := req.Video(); ok {
		params = append(params, param{"embed_mode", v.EmbedMode}, param{"duration_seconds", v.DurationSeconds})
	}
	if a, ok := req.Audio(); ok {
		params = append(params, param{"duration_seconds", a.DurationSeconds})
	}
	if img, ok := req.Image(); ok {
		params = append(params, param{"detail_level", img.DetailLevel})
	}
	if t, ok := req.Text(); ok {
		params = append(params, param{"truncate_mode", t.TruncateMode}, param{"max_length_chars", t.MaxLengthChars})
	}
	return params
}

// searchAction serves both search and more; more pages --times rounds further.
func searchAction(ctx context.Context, cmd *cli.Command) error {
	opt, err := filter.Parse(cmd.String("option"))
	if err != nil {
		return err
	}
	settings, err := parseSettings(cmd.String("model"), cmd.StringSlice("set"))
	if err != nil {
		return err
	}
	img, err := readImage(cmd.String("image"))
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd.Root())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newClient(cmd.Root(), logger)
	if err != nil {
		return err
	}
	ls, err := openLocalSession(ctx, client, logger, 0)
	if err != nil {
		return err
	}

	view, err := ls.search.Search(ctx, ls.id, retrievaluc.SearchInput{
		Text:     cmd.String("text"),
		Image:    img,
		Option:   opt,
		Settings: settings,
	})
	if err != nil {
		return err
	}
	if cmd.Name == "more" {
		for range cmd.Int("times") {
			if view, err = ls.search.ShowMore(ctx, ls.id); err != nil {
				return err
			}
		}
	}
	return printSearch(cmd, view)
}

func printSearch(cmd *cli.Command, view retrievaluc.View) error {
	w := writer(cmd)
	if cmd.Root().String("output") == "json" {
		return writeJSON(w, view)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "mode: %s\tpage size: %d\thits: %d\n", view.Mode, view.PageSize, len(view.Hits))
	for i, h := range view.Hits {
		if t, ok := h.Task(); ok {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, t.ID(), t.Modality(), t.Status(), t.Name())
			continue
		}
		r, _ := h.Result()
		where := r.TimeRange()
		if where == "" {
			where = excerpt(r.Citation())
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", i+1, r.Category(), r.TaskID(), r.Modality(),
			strconv.FormatFloat(r.Distance(), 'f', 4, 64), r.TaskName(), where)
	}
	return tw.Flush()
}

func chatAction(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Root())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newClient(cmd.Root(), logger)
	if err != nil {
		return err
	}
	ls, err := openLocalSession(ctx, client, logger, int(cmd.Int("top-k")))
	if err != nil {
		return err
	}

	view, err := ls.chat.Submit(ctx, ls.id, conversationuc.SubmitInput{
		Text:          cmd.String("text"),
		AudioDuration: cmd.String("audio-duration"),
	})
	if err != nil {
		return err
	}
	return printChat(cmd, view)
}

func printChat(cmd *cli.Command, view conversationuc.View) error {
	w := writer(cmd)
	if cmd.Root().String("output") == "json" {
		return writeJSON(w, view)
	}
	var answer chat.Message
	for _, m := range view.Messages {
		if m.Role() == chat.Assistant {
			answer = m
		}
	}
	fmt.Fprintln(w, answer.Text())
	cs := answer.Citations()
	if len(cs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range cs {
		where := c.TimeRange()
		if chat.ViewFor(c.Modality()) == chat.Inline {
			where = excerpt(c.Citation())
		}
		fmt.Fprintf(tw, "[%d]\t%s\t%s\t%s\t%s\n", i+1, c.Category(), c.Modality(), c.TaskName(), where)
	}
	return tw.Flush()
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
