package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"epigonos/internal/model"
)

func TestDecodeGenomeFixture(t *testing.T) {
	genome := decodeGenomeFixture(t, "minimal_genome_v1.json")
	if genome.ID != "genome-minimal-1" {
		t.Fatalf("unexpected genome id: %s", genome.ID)
	}
	if genome.Signature != "poly" {
		t.Fatalf("unexpected signature binding: %s", genome.Signature)
	}
	if len(genome.Instructions) != 1 || genome.Instructions[0].Opcode != "i32.add" {
		t.Fatalf("unexpected instructions: %+v", genome.Instructions)
	}
	operands := genome.Instructions[0].Operands
	if len(operands) != 2 || operands[0].Kind != model.OperandRegister || operands[1].Kind != model.OperandConst {
		t.Fatalf("unexpected operands: %+v", operands)
	}
	if operands[1].Const.Int != 2 {
		t.Fatalf("unexpected constant payload: %+v", operands[1].Const)
	}
}

func TestDecodePopulationFixture(t *testing.T) {
	path := fixturePath("minimal_population_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	population, err := DecodePopulation(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if population.ID != "population-minimal-1" {
		t.Fatalf("unexpected population id: %s", population.ID)
	}
	if len(population.GenomeIDs) != 1 || population.GenomeIDs[0] != "genome-minimal-1" {
		t.Fatalf("unexpected population genome ids: %+v", population.GenomeIDs)
	}
}

func TestDecodeRunSummaryFixture(t *testing.T) {
	path := fixturePath("minimal_run_summary_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	summary, err := DecodeRunSummary(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if summary.RunID != "run-minimal-1" || summary.Problem != "poly" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.StopReason != "generation_limit" || summary.BestScore != -4 {
		t.Fatalf("unexpected summary payload: %+v", summary)
	}
}

func TestGenomeRoundTripPreservesStructure(t *testing.T) {
	input := model.Genome{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "g2-i4",
		Signature:       "step",
		Registers:       []model.ValueType{model.F64, model.I32, model.I32},
		Instructions: []model.Instruction{
			{
				Opcode: "f64.ge",
				Operands: []model.Operand{
					model.RegisterOperand(0),
					model.ConstOperand(model.FloatValue(model.F64, 2.5)),
				},
				Result: 1,
			},
		},
	}

	encoded, err := EncodeGenome(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeGenome(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(input, decoded) {
		t.Fatalf("round trip mismatch:\n in: %+v\nout: %+v", input, decoded)
	}
}

func TestDecodeGenomeRejectsVersionMismatch(t *testing.T) {
	genome := decodeGenomeFixture(t, "minimal_genome_v1.json")
	genome.SchemaVersion++

	encoded, err := EncodeGenome(genome)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeGenome(encoded); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodePopulationRejectsVersionMismatch(t *testing.T) {
	population := model.Population{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion + 1},
		ID:              "p1",
	}
	encoded, err := EncodePopulation(population)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodePopulation(encoded); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeRunSummaryRejectsVersionMismatch(t *testing.T) {
	summary := model.RunSummary{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		RunID:           "run-1",
	}
	encoded, err := EncodeRunSummary(summary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRunSummary(encoded); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeTopGenomesChecksEmbeddedVersions(t *testing.T) {
	top := []model.TopGenomeRecord{{
		Rank: 0,
		Genome: model.Genome{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion + 1},
			ID:              "g1",
		},
	}}
	encoded, err := EncodeTopGenomes(top)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeTopGenomes(encoded); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestFitnessHistoryRoundTrip(t *testing.T) {
	input := []float64{-40, -12, -3, 0}
	encoded, err := EncodeFitnessHistory(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeFitnessHistory(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(input, decoded) {
		t.Fatalf("round trip mismatch: %+v vs %+v", input, decoded)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func decodeGenomeFixture(t *testing.T, name string) model.Genome {
	t.Helper()

	path := fixturePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	genome, err := DecodeGenome(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	return genome
}
