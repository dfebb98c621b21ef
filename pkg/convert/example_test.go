package convert_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/twinfer/matcsv/pkg/convert"
	"github.com/twinfer/matcsv/pkg/matfile"
	"github.com/twinfer/matcsv/pkg/sink"
	"github.com/twinfer/matcsv/testutil"
)

// Example converts an in-memory MAT-file and prints what each variable
// became.
func Example() {
	data := testutil.NewMatFile().
		Add("emg", testutil.Doubles(2, 2, 1, 2, 3, 4)).
		Add("info", testutil.Struct([]string{"inner"}, testutil.Struct([]string{"k"}, testutil.Number(1)))).
		Bytes()

	f, err := matfile.Decode(data)
	if err != nil {
		log.Fatal(err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := sink.NewMemory()
	report, err := convert.New(convert.WithLogger(quiet)).ConvertRecords(context.Background(), f.Records, mem)
	if err != nil {
		log.Fatal(err)
	}

	for _, o := range report.Outcomes {
		fmt.Printf("%s: %s\n", o.Name, o.Status)
	}
	emg, _ := mem.Get("emg")
	fmt.Print(string(emg.Body))
	// Output:
	// __header__: skipped
	// __version__: skipped
	// __globals__: skipped
	// emg: tabularized
	// info: fallback
	// 0,1
	// 1,2
	// 3,4
}

// Example_withOptions writes tab-separated files with two workers.
func Example_withOptions() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	report, err := convert.ToDir(context.Background(), "S2_E1_A1.mat", "data",
		convert.WithLogger(logger),
		convert.WithWorkers(2),
		convert.WithReservedPrefixes("__", "tmp_"),
		convert.WithSinkOptions(sink.WithExtension("tsv"), sink.WithDelimiter('\t')),
	)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %v\n", report.Written())
}
