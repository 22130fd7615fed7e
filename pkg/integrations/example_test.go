package integrations_test

import (
	"fmt"

	"github.com/matzehuels/planbridge/pkg/integrations"
)

func ExampleJoinURL() {
	fmt.Println(integrations.JoinURL("https://dev.azure.com", "contoso", "Web Shop", "_apis", "wit", "wiql"))
	// Output: https://dev.azure.com/contoso/Web%20Shop/_apis/wit/wiql
}

func ExampleURLEncode() {
	fmt.Println(integrations.URLEncode("[System.Title] = 'Checkout'"))
	// Output: %5BSystem.Title%5D+%3D+%27Checkout%27
}
