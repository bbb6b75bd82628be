// SPDX-License-Identifier: Apache-2.0

package changeset_test

import (
	"fmt"
	"log"

	changeset "github.com/brzpegasus/ember-changeset"
)

// Example merging staged changes onto a plain document.
func ExampleMergeDeep() {
	target := map[string]any{
		"user": map[string]any{"name": "Ada", "role": "admin"},
	}
	source := map[string]any{
		"user": map[string]any{"name": changeset.NewChange("Grace")},
	}

	merged, err := changeset.MergeDeep(target, source, changeset.Options{})
	if err != nil {
		log.Fatal(err)
	}

	user := merged.(map[string]any)["user"].(map[string]any)
	fmt.Println(user["name"])
	fmt.Println(user["role"])
	// Output:
	// Grace
	// admin
}

// Example merging into a model whose fields are declared by struct tags.
func ExampleNewModel() {
	type User struct {
		Name string `yaml:"name"`
		Age  int    `yaml:"age"`
	}

	model, err := changeset.NewModel[User](map[string]any{"name": "Ada"})
	if err != nil {
		log.Fatal(err)
	}

	// "age" has no entry yet, but the model declares it.
	if _, err := changeset.MergeDeep(model, map[string]any{"age": 30}, changeset.Options{}); err != nil {
		log.Fatal(err)
	}

	fmt.Println(model.Get("name"))
	fmt.Println(model.Get("age"))
	// Output:
	// Ada
	// 30
}

// Example resolving a guarded key into a dotted-path write.
func ExampleSetPath() {
	obj := map[string]any{}
	changeset.SetPath(obj, "server.tls.enabled", true)

	fmt.Println(changeset.GetPath(obj, "server.tls.enabled"))
	// Output:
	// true
}
