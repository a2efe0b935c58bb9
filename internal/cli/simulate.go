package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/client"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

type simulateOptions struct {
	subject   string
	questions int
	accuracy  float64
	maxDelay  time.Duration
	timeout   time.Duration
	seed      int64
}

// NewSimulateCmd plays two scripted clients against an in-process engine.
func NewSimulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted battle between two bots and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.subject, "subject", "general", "question subject")
	cmd.Flags().IntVar(&opts.questions, "questions", 5, "questions per battle")
	cmd.Flags().Float64Var(&opts.accuracy, "accuracy", 0.7, "chance a bot picks the right option")
	cmd.Flags().DurationVar(&opts.maxDelay, "max-delay", 1500*time.Millisecond, "slowest bot think time")
	cmd.Flags().DurationVar(&opts.timeout, "question-timeout", 2*time.Second, "per-question countdown")
	cmd.Flags().Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed for the bots")
	return cmd
}

func runSimulation(ctx context.Context, out io.Writer, opts simulateOptions) error {
	pools := sampleQuestions()
	answerKey := make(map[string]int)
	for _, pool := range pools {
		for _, q := range pool {
			answerKey[q.ID] = q.CorrectOption
		}
	}

	service := app.NewBattleService(memory.NewBattleStore(),
		memory.NewQuestionRepository(memory.NewStaticQuestionLoader(pools), time.Minute),
		app.NewSyncChannel(memory.NewBroker(), 250*time.Millisecond),
		app.WithSettings(app.Settings{QuestionCount: opts.questions, FallbackSubject: "general"}),
		app.WithProfiles(memory.NewProfileDirectory(nil)),
	)

	battle, err := service.CreateBattle(ctx, "alice", opts.subject, false)
	if err != nil {
		return err
	}
	if _, err := service.JoinBattle(ctx, battle.ID, "bob"); err != nil {
		return err
	}
	fmt.Fprintf(out, "battle %s (room %s, subject %s)\n", battle.ID, battle.RoomCode, opts.subject)

	rng := rand.New(rand.NewSource(opts.seed))
	players := []string{"alice", "bob"}
	bots := make([]client.Answerer, len(players))
	for i := range players {
		bots[i] = newBot(rand.New(rand.NewSource(rng.Int63())), answerKey, opts.accuracy, opts.maxDelay)
	}

	results := make([]domain.CompletionResult, len(players))
	g, gctx := errgroup.WithContext(ctx)
	for i, userID := range players {
		i, userID := i, userID
		g.Go(func() error {
			controller := client.NewController(service, service, battle.ID, userID, bots[i],
				client.WithQuestionTimeout(opts.timeout),
				client.WithAnswerResults(func(r domain.AnswerResult) {
					fmt.Fprintf(out, "  %-5s q%d correct=%-5v +%d (total %d)\n", userID, r.QuestionOrderIndex+1, r.Correct, r.Awarded, r.TotalScore)
				}),
			)
			result, err := controller.Run(gctx)
			results[i] = result
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	snapshot, err := service.Snapshot(ctx, battle.ID)
	if err != nil {
		return err
	}
	for _, p := range app.RankParticipants(participantsOf(snapshot)) {
		fmt.Fprintf(out, "%-5s score=%d correct=%d time=%dms\n", p.UserID, p.Score, p.CorrectCount, p.TotalTimeMs)
	}
	for i, r := range results {
		if r.Transitioned {
			fmt.Fprintf(out, "%s finished first\n", players[i])
		}
	}
	fmt.Fprintf(out, "winner: %s\n", snapshot.Battle.WinnerID)
	return nil
}

// newBot answers after a random think time, right with probability accuracy.
func newBot(rng *rand.Rand, answerKey map[string]int, accuracy float64, maxDelay time.Duration) client.Answerer {
	return client.AnswerFunc(func(ctx context.Context, q domain.PublicQuestion) (int, error) {
		delay := time.Duration(0)
		if maxDelay > 0 {
			delay = time.Duration(rng.Int63n(int64(maxDelay)))
		}
		pick := answerKey[q.QuestionID]
		if rng.Float64() >= accuracy && len(q.Options) > 1 {
			pick = (pick + 1 + rng.Intn(len(q.Options)-1)) % len(q.Options)
		}
		select {
		case <-time.After(delay):
			return pick, nil
		case <-ctx.Done():
			return domain.NoAnswer, ctx.Err()
		}
	})
}

func participantsOf(snapshot domain.BattleSnapshot) []domain.Participant {
	out := make([]domain.Participant, 0, len(snapshot.Participants))
	for _, p := range snapshot.Participants {
		out = append(out, p.Participant)
	}
	return out
}
